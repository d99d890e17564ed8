package coord

import (
	"context"
	"time"

	"github.com/abelbrown/mentions/internal/logging"
	"github.com/abelbrown/mentions/internal/otel"
	"github.com/abelbrown/mentions/internal/ui"
)

// tick sends a reload at every activation of the refresh schedule.
func (c *Coordinator) tick(ctx context.Context, program sender) {
	for {
		next := c.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			logging.Debug("scheduled refresh")
			c.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindScheduleTick})
			c.send(ctx, program, ui.ReloadRequested{Reason: "schedule"})
		}
	}
}
