package extract

import (
	"errors"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/components/telemetry"
)

const report_field_parse = "field.parse"

// Policy decides what happens to fields that failed to parse.
type Policy struct {
	Tel telemetry.API
	// WarnOnMissingRequired turns a missing required field into a warning and a zero value
	// instead of an error.
	WarnOnMissingRequired bool
}

func (p Policy) warn(f Field, err error) {
	if p.Tel == nil {
		return
	}
	p.Tel.ReportWarning(report_field_parse, f.Entity, f.Name, err)
}

// Safe returns the value of r. Failures of optional fields are reported as warnings and turned
// into the zero value, failures of required fields are returned unless the policy says to warn.
func Safe[T any](p Policy, f Field, r Result[T]) (T, error) {
	var zero T
	if r.Err == nil {
		return r.Value, nil
	}

	var parseErr errs.ParseError
	requiredMissing := f.Required && errors.As(r.Err, &parseErr) && parseErr.Err == nil
	if requiredMissing && !p.WarnOnMissingRequired {
		return zero, r.Err
	}
	p.warn(f, r.Err)
	return zero, nil
}

// SafePtr is Safe for nullable fields, absent and failed values are nil.
func SafePtr[T any](p Policy, f Field, r Result[T]) (*T, error) {
	v, err := Safe(p, f, r)
	if err != nil {
		return nil, err
	}
	if r.Err != nil || !r.Present {
		return nil, nil
	}
	return &v, nil
}
