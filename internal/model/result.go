package model

// ResultStatus tags the outcome of a call to an external integration
type ResultStatus string

const (
	ResultOK      ResultStatus = "ok"
	ResultEmpty   ResultStatus = "empty"
	ResultSkipped ResultStatus = "skipped"
	ResultError   ResultStatus = "error"
)

// Result is returned by every external call site so callers can tell a
// disabled integration apart from a failed one
type Result struct {
	Status ResultStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Err    error        `json:"-"`
}

// OK returns a successful result
func OK(detail string) Result { return Result{Status: ResultOK, Detail: detail} }

// Empty returns a result for a call that succeeded without output
func Empty(detail string) Result { return Result{Status: ResultEmpty, Detail: detail} }

// Skipped returns a result for a disabled integration
func Skipped(detail string) Result { return Result{Status: ResultSkipped, Detail: detail} }

// Failed returns an error result
func Failed(err error) Result {
	r := Result{Status: ResultError, Err: err}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

func (r Result) IsOK() bool      { return r.Status == ResultOK }
func (r Result) IsError() bool   { return r.Status == ResultError }
func (r Result) IsSkipped() bool { return r.Status == ResultSkipped }

func (r Result) String() string {
	if r.Detail == "" {
		return string(r.Status)
	}
	return string(r.Status) + ": " + r.Detail
}
