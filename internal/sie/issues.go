package sie

import (
	"errors"
	"fmt"
)

// ErrUnparseableNumber marks a field where a number was expected but could not be read.
var ErrUnparseableNumber = errors.New("unparseable numeric field")

// ErrMonthOutOfRange marks a period balance whose month is not 1-12.
var ErrMonthOutOfRange = errors.New("month out of range")

// ErrUnclosedObjectList marks a record whose object list has no closing brace.
var ErrUnclosedObjectList = errors.New("unclosed object list")

// Issue describes a record that was skipped during parsing.
type Issue struct {
	Line  int    `json:"line"`
	Tag   string `json:"tag"`
	Field string `json:"field"`
	Value string `json:"value"`
	// Reason is Err rendered as text so issues survive JSON encoding.
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("line %d: %s %s %q: %v", i.Line, i.Tag, i.Field, i.Value, i.Err)
}

func (i Issue) Unwrap() error {
	return i.Err
}

// Err joins all issues into one error, or returns nil if parsing was clean.
func (r *Result) Err() error {
	if len(r.Issues) == 0 {
		return nil
	}
	errs := make([]error, len(r.Issues))
	for i, issue := range r.Issues {
		errs[i] = issue
	}
	return errors.Join(errs...)
}
