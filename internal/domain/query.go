package domain

// MockExecutionHandle is returned in place of a real execution id when no
// AWS credentials are configured.
const MockExecutionHandle ExecutionHandle = "mock-execution-id"

// Query is an immutable request to run SQL against Athena.
type Query struct {
	SQL            string
	Database       string
	OutputLocation string
	WorkGroup      string
}

// ExecutionHandle is the opaque id Athena assigns to a submitted query.
type ExecutionHandle string

// IsMock reports whether h is the mock-mode sentinel.
func (h ExecutionHandle) IsMock() bool { return h == MockExecutionHandle }

// ExecutionStatus is the lifecycle state of a submitted query.
type ExecutionStatus string

// Execution states. Athena's QUEUED is reported as StatusRunning.
const (
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusSucceeded ExecutionStatus = "SUCCEEDED"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusCancelled ExecutionStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Record maps column name to value. A nil value means the column was absent
// in the row, which is distinct from an empty string.
type Record map[string]*string

// Get returns the value for column and whether it was present.
func (r Record) Get(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// ResultSet is a fully materialized query result.
type ResultSet struct {
	Columns []string
	Records []Record
}
