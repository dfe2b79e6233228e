package telemetry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecorder()
	tel := NewScopedAPI("orders", rec)
	tel.ReportWarning("history", "page", 2)
	tel.ReportBroken("transactions")

	warnings := rec.Reports("warning", "orders: history")
	require.Len(t, warnings, 1)
	require.Equal(t, []any{"page", 2}, warnings[0].Params)
	require.Len(t, rec.Reports("broken", "orders: transactions"), 1)
	require.Empty(t, rec.Reports("debug", ""))
}

func TestSlogAPI(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	InitSlogTo(buf, false)

	tel := NewSlogAPI(nil)
	tel.ReportDebug("hidden unless verbose")
	tel.ReportWarning("entity.order", "grand_total")

	out := buf.String()
	require.NotContains(t, out, "hidden unless verbose")
	require.Contains(t, out, "id=entity.order")
	require.Contains(t, out, "params.0=grand_total")
}
