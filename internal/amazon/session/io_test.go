package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsoleIOKeepsLineAfterCancelledPrompt(t *testing.T) {
	reader, writer := io.Pipe()
	t.Cleanup(func() { writer.Close() })
	console := NewConsoleIO(reader, io.Discard)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := console.Prompt(cancelled, PromptOTP, "code", nil)
	require.ErrorIs(t, err, context.Canceled)

	ctx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()

	go writer.Write([]byte("123456\n"))
	answer, err := console.Prompt(ctx, PromptOTP, "code", nil)
	require.NoError(t, err)
	require.Equal(t, "123456", answer)

	go writer.Write([]byte("7\n"))
	answer, err = console.Prompt(ctx, PromptMFADevice, "device", []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "7", answer)
}
