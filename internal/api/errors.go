package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cloudsathi/internal/domain"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var cfgErr *domain.ConfigurationError
	var authErr *domain.AuthorizationError

	switch domain.KindOf(err) {
	case domain.KindInvalidRange:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidParameter:
		return http.StatusBadRequest
	case domain.KindConfiguration:
		if errors.As(err, &cfgErr) && cfgErr.Provider == "azure" {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case domain.KindAuthorization:
		if errors.As(err, &authErr) && authErr.Unauthenticated {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case domain.KindSubmission, domain.KindQueryExecution, domain.KindResultRetrieval, domain.KindRemoteService:
		return http.StatusBadGateway
	case domain.KindPollTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCancelled:
		return statusClientClosedRequest
	case domain.KindRecommendationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"kind","detail"}. Unclassified errors keep
// their message out of the response.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := httpStatusFromDomainError(err)
	kind := domain.KindOf(err)
	detail := err.Error()
	if kind == domain.KindInternal {
		detail = "internal server error"
	}

	if status >= 500 {
		logger.ErrorContext(r.Context(), "request failed", "kind", kind, "status", status, "error", err)
	} else {
		logger.WarnContext(r.Context(), "request rejected", "kind", kind, "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Kind: kind, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
