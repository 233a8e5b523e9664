package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartOpenScheduler opens scheduled timelines on every tick. The caller
// shuts the returned scheduler down.
func (s *TimelineService) StartOpenScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.OpenDue(ctx, time.Now())
			if err != nil {
				s.Log.Error("❌ [Scheduler] Failed to open due timelines", zap.Error(err))
				return
			}
			if n > 0 {
				s.Log.Info("✅ [Scheduler] Auto-opened timelines", zap.Int64("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
