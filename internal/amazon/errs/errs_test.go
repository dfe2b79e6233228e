package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthErrorMessage(t *testing.T) {
	err := AuthError{Message: "sign in failed", SiteText: "Your password is incorrect."}
	require.Equal(t, "sign in failed: Error from Amazon: Your password is incorrect.", err.Error())
	require.Equal(t, "authentication failed", AuthError{}.Error())
}

func TestResumeFrom(t *testing.T) {
	wrapped := fmt.Errorf("history: %w", ResumableError{
		Resume: Resume{Year: 2018, StartIndex: 10},
		Err:    errors.New("boom"),
	})
	resume, ok := ResumeFrom(wrapped)
	require.True(t, ok)
	require.Equal(t, 10, resume.StartIndex)

	unparseable := UnparseablePageError{Message: "no order cards", Resume: &Resume{NextPageURL: "next"}}
	resume, ok = ResumeFrom(unparseable)
	require.True(t, ok)
	require.Equal(t, "next", resume.NextPageURL)

	_, ok = ResumeFrom(errors.New("plain"))
	require.False(t, ok)
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("login: %w", AuthError{Exhausted: true, Err: SessionExpiredError{URL: "/ap/signin"}})

	var auth AuthError
	require.True(t, errors.As(err, &auth))
	require.True(t, auth.Exhausted)

	var expired SessionExpiredError
	require.True(t, errors.As(err, &expired))
	require.Equal(t, "/ap/signin", expired.URL)
}
