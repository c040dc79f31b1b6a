package apilint

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func init() {
	Register(operationTagsRule{})
	Register(operationIDRule{})
	Register(queryParamSnakeCaseRule{})
	Register(errorResponseSchemaRule{})
	Register(jsonSuccessRule{})
	Register(upstreamFailureRule{})
	Register(refsResolveRule{})
}

// errorSchemaRef is the schema every /api error response must use.
const errorSchemaRef = "#/components/schemas/ErrorResponse"

// apiPrefix marks the operations served behind rate limiting and auth.
const apiPrefix = "/api/"

// OAL001
type operationTagsRule struct{}

func (operationTagsRule) ID() string                { return "OAL001" }
func (operationTagsRule) Description() string       { return "every operation has tags" }
func (operationTagsRule) DefaultSeverity() Severity { return SeverityError }

func (r operationTagsRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if tags := mapGet(op, "tags"); tags == nil || len(tags.Content) == 0 {
			vs = append(vs, ctx.Violation(op.Line, r.ID(), r.DefaultSeverity(),
				fmt.Sprintf("operation %q is missing 'tags'", operationLabel(path, method, op))))
		}
	})
	return vs
}

// OAL002
type operationIDRule struct{}

func (operationIDRule) ID() string                { return "OAL002" }
func (operationIDRule) Description() string       { return "operationId is present, unique and lowerCamelCase" }
func (operationIDRule) DefaultSeverity() Severity { return SeverityError }

func (r operationIDRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	seen := map[string]int{}
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		idNode := mapGet(op, "operationId")
		switch {
		case idNode == nil:
			vs = append(vs, ctx.Violation(op.Line, r.ID(), r.DefaultSeverity(),
				fmt.Sprintf("operation %s %s is missing 'operationId'", method, path)))
		case !camelCaseRe.MatchString(idNode.Value):
			vs = append(vs, ctx.Violation(idNode.Line, r.ID(), r.DefaultSeverity(),
				fmt.Sprintf("operationId %q is not lowerCamelCase", idNode.Value)))
		default:
			if prev, ok := seen[idNode.Value]; ok {
				vs = append(vs, ctx.Violation(idNode.Line, r.ID(), r.DefaultSeverity(),
					fmt.Sprintf("duplicate operationId %q (first seen at line %d)", idNode.Value, prev)))
				return
			}
			seen[idNode.Value] = idNode.Line
		}
	})
	return vs
}

// OAL003
type queryParamSnakeCaseRule struct{}

func (queryParamSnakeCaseRule) ID() string                { return "OAL003" }
func (queryParamSnakeCaseRule) Description() string       { return "query parameters are snake_case" }
func (queryParamSnakeCaseRule) DefaultSeverity() Severity { return SeverityWarning }

func (r queryParamSnakeCaseRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		params := mapGet(op, "parameters")
		if params == nil {
			return
		}
		for _, p := range params.Content {
			param := ctx.Deref(p)
			if param == nil {
				continue
			}
			in, name := mapGet(param, "in"), mapGet(param, "name")
			if in == nil || name == nil || in.Value != "query" {
				continue
			}
			if !snakeCaseRe.MatchString(name.Value) {
				vs = append(vs, ctx.Violation(p.Line, r.ID(), r.DefaultSeverity(),
					fmt.Sprintf("operation %q query parameter %q is not snake_case", operationLabel(path, method, op), name.Value)))
			}
		}
	})
	return vs
}

// OAL004
type errorResponseSchemaRule struct{}

func (errorResponseSchemaRule) ID() string { return "OAL004" }
func (errorResponseSchemaRule) Description() string {
	return "4xx and 5xx responses under /api use the ErrorResponse schema"
}
func (errorResponseSchemaRule) DefaultSeverity() Severity { return SeverityError }

func (r errorResponseSchemaRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if !strings.HasPrefix(path, apiPrefix) {
			return
		}
		forEachResponse(op, func(code int, key, resp *yaml.Node) {
			if code < 400 {
				return
			}
			if jsonSchemaRef(ctx, resp) != errorSchemaRef {
				vs = append(vs, ctx.Violation(key.Line, r.ID(), r.DefaultSeverity(),
					fmt.Sprintf("operation %q response %d does not use %s", operationLabel(path, method, op), code, errorSchemaRef)))
			}
		})
	})
	return vs
}

// OAL005
type jsonSuccessRule struct{}

func (jsonSuccessRule) ID() string                { return "OAL005" }
func (jsonSuccessRule) Description() string       { return "2xx responses declare an application/json schema" }
func (jsonSuccessRule) DefaultSeverity() Severity { return SeverityWarning }

func (r jsonSuccessRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		forEachResponse(op, func(code int, key, resp *yaml.Node) {
			if code < 200 || code >= 300 {
				return
			}
			if jsonSchema(ctx, resp) == nil {
				vs = append(vs, ctx.Violation(key.Line, r.ID(), r.DefaultSeverity(),
					fmt.Sprintf("operation %q response %d has no application/json schema", operationLabel(path, method, op), code)))
			}
		})
	})
	return vs
}

// OAL006
type upstreamFailureRule struct{}

func (upstreamFailureRule) ID() string { return "OAL006" }
func (upstreamFailureRule) Description() string {
	return "operations under /api declare a 5xx response for upstream failures"
}
func (upstreamFailureRule) DefaultSeverity() Severity { return SeverityWarning }

func (r upstreamFailureRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	ctx.ForEachOperation(func(path, method string, op *yaml.Node) {
		if !strings.HasPrefix(path, apiPrefix) {
			return
		}
		has5xx := false
		forEachResponse(op, func(code int, _, _ *yaml.Node) {
			if code >= 500 {
				has5xx = true
			}
		})
		if !has5xx {
			vs = append(vs, ctx.Violation(op.Line, r.ID(), r.DefaultSeverity(),
				fmt.Sprintf("operation %q declares no 5xx response", operationLabel(path, method, op))))
		}
	})
	return vs
}

// OAL007
type refsResolveRule struct{}

func (refsResolveRule) ID() string                { return "OAL007" }
func (refsResolveRule) Description() string       { return "every local $ref resolves" }
func (refsResolveRule) DefaultSeverity() Severity { return SeverityError }

func (r refsResolveRule) Check(ctx *LintContext) []Violation {
	var vs []Violation
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n == nil {
			return
		}
		if ref := mapGet(n, "$ref"); ref != nil && strings.HasPrefix(ref.Value, "#/") && ctx.ResolveRef(ref.Value) == nil {
			vs = append(vs, ctx.Violation(ref.Line, r.ID(), r.DefaultSeverity(),
				fmt.Sprintf("unresolved $ref %q", ref.Value)))
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(ctx.Root)
	return vs
}

// === response helpers ===

// forEachResponse visits numeric status codes; "default" and ranges are skipped.
func forEachResponse(op *yaml.Node, fn func(code int, key, resp *yaml.Node)) {
	responses := mapGet(op, "responses")
	if responses == nil {
		return
	}
	for i := 0; i < len(responses.Content)-1; i += 2 {
		code, err := strconv.Atoi(responses.Content[i].Value)
		if err != nil {
			continue
		}
		fn(code, responses.Content[i], responses.Content[i+1])
	}
}

func jsonSchema(ctx *LintContext, resp *yaml.Node) *yaml.Node {
	resp = ctx.Deref(resp)
	return mapGet(mapGet(mapGet(resp, "content"), "application/json"), "schema")
}

func jsonSchemaRef(ctx *LintContext, resp *yaml.Node) string {
	if ref := mapGet(jsonSchema(ctx, resp), "$ref"); ref != nil {
		return ref.Value
	}
	return ""
}
