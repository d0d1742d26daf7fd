// Package diag collects user-facing diagnostics produced while lowering forall
// statements.
//
// Three severities exist:
//
//   - continuable errors are recorded and compilation proceeds;
//   - a hard stop ([ErrStop]) abandons the current statement after the
//     errors that caused it have been recorded;
//   - a fatal error ([FatalError]) halts the enclosing unit.
//
// Internal consistency violations are not diagnostics. [Assert] panics with
// an [InternalError] instead.
package diag

import (
	"errors"
	"fmt"
	"go/token"

	"golang.org/x/tools/go/analysis"
)

// Diagnostic categories.
const (
	CategoryError = "error"
	CategoryFatal = "fatal"
)

// ErrStop is returned when a statement cannot be lowered further because of
// errors already reported.
var ErrStop = errors.New("stopped after errors")

// FatalError halts the enclosing unit.
type FatalError struct {
	Diagnostic analysis.Diagnostic
}

func (e *FatalError) Error() string { return e.Diagnostic.Message }

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// InternalError is the panic value of a failed Assert.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

// Assert panics with an InternalError when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
	}
}

// Reporter accumulates diagnostics in report order.
type Reporter struct {
	diags []analysis.Diagnostic
}

// NewReporter creates an empty Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Errorf records a continuable error.
func (r *Reporter) Errorf(pos token.Pos, format string, args ...any) *Report {
	return r.add(pos, CategoryError, fmt.Sprintf(format, args...))
}

// Fatalf records a fatal error. Call [Report.Err] to obtain the error that
// halts the unit.
func (r *Reporter) Fatalf(pos token.Pos, format string, args ...any) *Report {
	return r.add(pos, CategoryFatal, fmt.Sprintf(format, args...))
}

func (r *Reporter) add(pos token.Pos, category, msg string) *Report {
	r.diags = append(r.diags, analysis.Diagnostic{
		Pos:      pos,
		Category: category,
		Message:  msg,
	})
	return &Report{r: r, idx: len(r.diags) - 1}
}

// Diagnostics returns the recorded diagnostics.
func (r *Reporter) Diagnostics() []analysis.Diagnostic {
	return r.diags
}

// ErrorCount returns the number of recorded diagnostics.
func (r *Reporter) ErrorCount() int {
	return len(r.diags)
}

// HasErrors reports whether anything was recorded.
func (r *Reporter) HasErrors() bool {
	return len(r.diags) > 0
}

// Messages returns the primary messages in report order.
func (r *Reporter) Messages() []string {
	msgs := make([]string, len(r.diags))
	for i, d := range r.diags {
		msgs[i] = d.Message
	}
	return msgs
}

// Report is a handle on a recorded diagnostic.
type Report struct {
	r   *Reporter
	idx int
}

// Note attaches a secondary note to the diagnostic.
func (b *Report) Note(pos token.Pos, format string, args ...any) *Report {
	d := &b.r.diags[b.idx]
	d.Related = append(d.Related, analysis.RelatedInformation{
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
	return b
}

// Err returns the control-flow error for the diagnostic: a *FatalError for
// fatal diagnostics and ErrStop otherwise.
func (b *Report) Err() error {
	d := b.r.diags[b.idx]
	if d.Category == CategoryFatal {
		return &FatalError{Diagnostic: d}
	}
	return ErrStop
}
