// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"time"

	"github.com/watchlaterhq/autowl/internal/logging"
)

// TickFunc is one pass of a periodic background loop. It receives the
// TickerService's own context, shared by every tick and canceled when the
// supervisor stops the service, and should return promptly once that
// context is done.
type TickFunc func(ctx context.Context) error

// TickerService adapts a TickFunc into a suture.Service: it runs the
// function immediately on start, then again every Interval, until the
// supervisor cancels its context. Grounded on the teacher's
// internal/supervisor/services/sync_service.go's Start/Serve/Stop
// adapter shape, simplified since a TickFunc has no separate Start/Stop
// lifecycle of its own — the tick either runs to completion or the
// context is canceled mid-run.
type TickerService struct {
	Name     string
	Interval time.Duration
	Tick     TickFunc
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	s.runTick(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *TickerService) runTick(ctx context.Context) {
	start := time.Now()
	if err := s.Tick(ctx); err != nil {
		logging.Error().Str("loop", s.Name).Err(err).Dur("elapsed", time.Since(start)).Msg("background loop tick failed")
		return
	}
	logging.Debug().Str("loop", s.Name).Dur("elapsed", time.Since(start)).Msg("background loop tick completed")
}

// String implements fmt.Stringer for suture's logging.
func (s *TickerService) String() string {
	return s.Name
}
