package chrono

import (
	"context"
	"fmt"
	"time"

	"amazon-orders/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

const report_cron_job = "cron.job"

// Scheduler runs jobs on cron specs until its context is cancelled.
type Scheduler struct {
	cron *cron.Cron
	tel  telemetry.API
}

func NewScheduler(tel telemetry.API, location *time.Location) Scheduler {
	if location == nil {
		location = time.Local
	}
	tel = telemetry.NewScopedAPI("cron", tel)
	return Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{tel: tel}),
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{tel: tel})),
		),
		tel: tel,
	}
}

// Add schedules job, a failed run is reported and the next run still happens.
func (s Scheduler) Add(ctx context.Context, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		err := job(ctx)
		if err != nil {
			s.tel.ReportBroken(report_cron_job, err, spec)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Run blocks until ctx is done and then waits for a running job to finish.
func (s Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(msg, append([]any{err}, l.formatParams(keysAndValues)...)...)
}
