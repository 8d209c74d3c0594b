// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"privacy-rewards-system/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler runs the mission expiry sweep every minute and, when an
// exporter is given, yesterday's ledger statement export daily at 00:10 UTC.
// The caller owns shutdown of the returned scheduler.
func StartScheduler(ctx context.Context, missions *MissionEngine, exporter *StatementExporter) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	// Every minute: expire overdue mission instances
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if _, err := missions.ExpireOverdue(ctx, missions.Now()); err != nil {
				utils.Log.WithError(err).Error("[Scheduler] mission expiry sweep failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("schedule mission expiry: %w", err)
	}

	if exporter != nil {
		if _, err := sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
			gocron.NewTask(func() {
				yesterday := exporter.Now().UTC().AddDate(0, 0, -1)
				if _, err := exporter.Export(ctx, yesterday); err != nil {
					utils.Log.WithError(err).Error("[Scheduler] statement export failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("schedule statement export: %w", err)
		}
	}

	sched.Start()
	return sched, nil
}
