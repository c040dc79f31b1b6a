package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsathi/pkg/apilint"
)

func TestGetSwagger_Validates(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)

	for _, path := range []string{
		"/api/aws/costs",
		"/api/azure/costs",
		"/api/aws/cur/top-resources",
		"/api/aws/cur/usage-by-operation",
		"/api/costs/summary",
		"/api/recommendations",
		"/health",
		"/readyz",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "path %s", path)
	}
	require.NotNil(t, doc.Paths.Find("/api/recommendations").Post)
}

func TestOpenAPIHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	OpenAPIHandler(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "3.0.3", body["openapi"])
}

func TestDocsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	DocsHandler(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-url="/openapi.json"`)
}

func TestOpenAPIDocument_FollowsConventions(t *testing.T) {
	l, err := apilint.NewFromData("openapi.json", OpenAPIDocument())
	require.NoError(t, err)
	assert.Empty(t, l.Run())
}
