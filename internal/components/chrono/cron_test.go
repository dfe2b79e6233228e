package chrono

import (
	"context"
	"errors"
	"testing"
	"time"

	"amazon-orders/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestSchedulerReportsFailedRuns(t *testing.T) {
	rec := telemetry.NewRecorder()
	scheduler := NewScheduler(rec, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{}, 1)
	err := scheduler.Add(ctx, "@every 1s", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("export failed")
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	cancel()
	<-done

	require.NotEmpty(t, rec.Reports("broken", report_cron_job))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	scheduler := NewScheduler(telemetry.NewRecorder(), nil)
	err := scheduler.Add(context.Background(), "every tuesday", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestCronLoggerError(t *testing.T) {
	rec := telemetry.NewRecorder()
	failure := errors.New("job panicked")
	cronLogger{tel: rec}.Error(failure, "recover", "spec", "@daily")

	reports := rec.Reports("broken", "recover")
	require.Len(t, reports, 1)
	require.Equal(t, []any{failure, "spec: @daily"}, reports[0].Params)
}
