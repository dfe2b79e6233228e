// Package errs holds the errors returned by the amazon packages, every one of them can be
// matched with errors.Is or errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// SitePrefix marks text that was reported by the site itself.
const SitePrefix = "Error from Amazon: "

var (
	// ErrNotAuthenticated is returned by content operations called before a successful login.
	ErrNotAuthenticated = errors.New("not authenticated, call Login first")
	// ErrFormNotDetected is returned when a challenge form is filled or submitted before it
	// detected itself on a page.
	ErrFormNotDetected = errors.New("form has not been detected on a page")
)

// ConfigError is an invalid or contradictory argument, it is always returned before any
// request is made.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "invalid configuration: " + e.Message
}

func Configf(format string, args ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, args...)}
}

// AuthError is a failed login, SiteText holds whatever the site rendered as the reason.
type AuthError struct {
	Message  string
	SiteText string
	// Critical is set when the site rejected the attempt in a way another attempt cannot fix,
	// like a wrong password.
	Critical  bool
	Exhausted bool
	Err       error
}

func (e AuthError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.SiteText != "" {
		parts = append(parts, SitePrefix+e.SiteText)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return "authentication failed"
	}
	return strings.Join(parts, ": ")
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// SessionExpiredError is returned when an authenticated request was sent back to sign in.
// The session is no longer authenticated, log in again and retry.
type SessionExpiredError struct {
	URL string
}

func (e SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired, redirected to sign in at %s", e.URL)
}

// StatusError is a response with an error status code.
type StatusError struct {
	URL    string
	Status int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

// ParseError is a required field that could not be parsed.
type ParseError struct {
	Entity string
	Field  string
	Err    error
}

func (e ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse %s.%s: %s", e.Entity, e.Field, e.Err.Error())
	}
	return fmt.Sprintf("could not parse %s.%s", e.Entity, e.Field)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// Resume is the pagination state needed to continue a listing where it stopped.
type Resume struct {
	Year        int
	StartIndex  int
	TimeFilter  string
	NextPageURL string
	// Continuation is the transaction listing's form state, nil when there is no next page.
	Continuation map[string]string
}

// UnparseablePageError is a page whose structure matched no known selector.
type UnparseablePageError struct {
	Message string
	URL     string
	Resume  *Resume
	Err     error
}

func (e UnparseablePageError) Error() string {
	msg := "unparseable page"
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e UnparseablePageError) Unwrap() error {
	return e.Err
}

// ResumableError wraps a failure that happened partway through a listing.
type ResumableError struct {
	Resume Resume
	Err    error
}

func (e ResumableError) Error() string {
	return e.Err.Error()
}

func (e ResumableError) Unwrap() error {
	return e.Err
}

// ResumeFrom returns the resume state attached to err, if any.
func ResumeFrom(err error) (Resume, bool) {
	var resumable ResumableError
	if errors.As(err, &resumable) {
		return resumable.Resume, true
	}
	var unparseable UnparseablePageError
	if errors.As(err, &unparseable) && unparseable.Resume != nil {
		return *unparseable.Resume, true
	}
	return Resume{}, false
}
