// Package apilint checks an OpenAPI 3.x document against the cloudsathi API
// conventions. Documents are read as gopkg.in/yaml.v3 nodes, which accepts
// JSON as well as YAML and keeps line numbers for reporting.
package apilint

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity levels for lint violations.
type Severity string

// Severity constants.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var sevRank = map[Severity]int{SeverityInfo: 0, SeverityWarning: 1, SeverityError: 2}

// Violation is a single lint finding.
type Violation struct {
	File     string
	Line     int
	RuleID   string
	Severity Severity
	Message  string
}

// String formats a violation in golangci-lint style.
func (v Violation) String() string {
	return fmt.Sprintf("%s:%d: %s %s: %s", v.File, v.Line, v.RuleID, v.Severity, v.Message)
}

// Rule is implemented by every lint rule.
type Rule interface {
	ID() string
	Description() string
	DefaultSeverity() Severity
	Check(ctx *LintContext) []Violation
}

var registry []Rule

// Register adds a rule to the global registry. Called from init() in rules.go.
func Register(r Rule) { registry = append(registry, r) }

// RegisteredRules returns a copy of the registry.
func RegisteredRules() []Rule {
	out := make([]Rule, len(registry))
	copy(out, registry)
	return out
}

// LintContext gives rules read access to the parsed document.
type LintContext struct {
	File string
	Root *yaml.Node
}

// ResolveRef returns the node a local $ref points at, or nil.
func (ctx *LintContext) ResolveRef(ref string) *yaml.Node {
	if !strings.HasPrefix(ref, "#/") {
		return nil
	}
	node := ctx.Root
	for _, p := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		node = mapGet(node, p)
		if node == nil {
			return nil
		}
	}
	return node
}

// Deref follows a $ref on n once. Nodes without a $ref are returned as is.
func (ctx *LintContext) Deref(n *yaml.Node) *yaml.Node {
	if ref := mapGet(n, "$ref"); ref != nil {
		return ctx.ResolveRef(ref.Value)
	}
	return n
}

// ForEachOperation calls fn for every (path, method, operation) in the document.
func (ctx *LintContext) ForEachOperation(fn func(path, method string, op *yaml.Node)) {
	paths := mapGet(ctx.Root, "paths")
	if paths == nil {
		return
	}
	for i := 0; i < len(paths.Content)-1; i += 2 {
		pathKey := paths.Content[i].Value
		pathItem := paths.Content[i+1]
		for j := 0; j < len(pathItem.Content)-1; j += 2 {
			method := pathItem.Content[j].Value
			if httpMethods[method] {
				fn(pathKey, method, pathItem.Content[j+1])
			}
		}
	}
}

// Violation creates a Violation with the context's file name.
func (ctx *LintContext) Violation(line int, ruleID string, sev Severity, msg string) Violation {
	return Violation{File: ctx.File, Line: line, RuleID: ruleID, Severity: sev, Message: msg}
}

// Linter holds a parsed OpenAPI document.
type Linter struct {
	file string
	root *yaml.Node
}

// New reads and parses the document at path.
func New(path string) (*Linter, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the caller
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewFromData(path, data)
}

// NewFromData parses an in-memory document. name is used in violations.
func NewFromData(name string, data []byte) (*Linter, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s: empty or invalid document", name)
	}
	return &Linter{file: name, root: doc.Content[0]}, nil
}

// Run executes all rules at their default severity.
func (l *Linter) Run() []Violation {
	return l.RunWithConfig(nil)
}

// RunWithConfig executes all rules with cfg's severity overrides applied.
// Violations are sorted by line.
func (l *Linter) RunWithConfig(cfg *Config) []Violation {
	ctx := &LintContext{File: l.file, Root: l.root}
	var vs []Violation
	for _, rule := range registry {
		sev := effectiveSeverity(cfg, rule)
		if sev == "" {
			continue
		}
		for _, v := range rule.Check(ctx) {
			v.Severity = sev
			vs = append(vs, v)
		}
	}
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Line < vs[j].Line })
	return vs
}

// HasErrors reports whether any violation has error severity.
func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Filter returns violations at or above minSev.
func Filter(vs []Violation, minSev Severity) []Violation {
	minRank := sevRank[minSev]
	var out []Violation
	for _, v := range vs {
		if sevRank[v.Severity] >= minRank {
			out = append(out, v)
		}
	}
	return out
}

// === YAML helpers ===

func mapGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

func operationLabel(path, method string, op *yaml.Node) string {
	if n := mapGet(op, "operationId"); n != nil {
		return n.Value
	}
	return method + " " + path
}

var (
	camelCaseRe = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
	snakeCaseRe = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
)
