package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"amazon-orders/internal/components/chrono"

	"github.com/pquerna/otp/totp"
)

// PromptKind says what an answer is needed for, automated responders use it to decide whether
// they can answer.
type PromptKind int

const (
	PromptMFADevice PromptKind = iota
	PromptOTP
	PromptCaptcha
)

func (k PromptKind) String() string {
	switch k {
	case PromptMFADevice:
		return "mfa_device"
	case PromptOTP:
		return "otp"
	case PromptCaptcha:
		return "captcha"
	}
	return "unknown"
}

// IO is how the session talks to whoever is signing in.
type IO interface {
	Echo(message string)
	// Prompt blocks until an answer is available, choices is non-empty when the answer must
	// be the index of one of them.
	Prompt(ctx context.Context, kind PromptKind, message string, choices []string) (string, error)
}

type lineAnswer struct {
	line string
	err  error
}

// lineReader has at most one read of the input in flight. A prompt that gives up on its
// context leaves the read pending and the next prompt takes its line.
type lineReader struct {
	in      *bufio.Reader
	mutex   sync.Mutex
	pending chan lineAnswer
}

func (r *lineReader) next() chan lineAnswer {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.pending == nil {
		answers := make(chan lineAnswer, 1)
		go func() {
			line, err := r.in.ReadString('\n')
			answers <- lineAnswer{line: line, err: err}
		}()
		r.pending = answers
	}
	return r.pending
}

func (r *lineReader) done(answers chan lineAnswer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.pending == answers {
		r.pending = nil
	}
}

// ConsoleIO prompts on a terminal. Prompts are answered one line at a time in the order they
// were asked, it is not meant for concurrent prompts.
type ConsoleIO struct {
	lines *lineReader
	out   io.Writer
}

func NewConsoleIO(in io.Reader, out io.Writer) ConsoleIO {
	return ConsoleIO{lines: &lineReader{in: bufio.NewReader(in)}, out: out}
}

func (c ConsoleIO) Echo(message string) {
	fmt.Fprintln(c.out, message)
}

func (c ConsoleIO) Prompt(ctx context.Context, kind PromptKind, message string, choices []string) (string, error) {
	for i, choice := range choices {
		fmt.Fprintf(c.out, "  %d: %s\n", i, choice)
	}
	fmt.Fprintf(c.out, "%s: ", message)

	answers := c.lines.next()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-answers:
		c.lines.done(answers)
		if a.err != nil && !(errors.Is(a.err, io.EOF) && a.line != "") {
			return "", fmt.Errorf("read %s answer: %w", kind, a.err)
		}
		return strings.TrimSpace(a.line), nil
	}
}

// TOTPIO answers one-time passcode prompts from a TOTP secret and passes everything else on.
type TOTPIO struct {
	secret string
	inner  IO
	time   chrono.TimeAPI
}

func NewTOTPIO(secret string, inner IO, time chrono.TimeAPI) TOTPIO {
	secret = strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	return TOTPIO{secret: secret, inner: inner, time: time}
}

func (t TOTPIO) Echo(message string) {
	t.inner.Echo(message)
}

func (t TOTPIO) Prompt(ctx context.Context, kind PromptKind, message string, choices []string) (string, error) {
	if kind != PromptOTP {
		return t.inner.Prompt(ctx, kind, message, choices)
	}
	code, err := totp.GenerateCode(t.secret, t.time.Now())
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return code, nil
}
