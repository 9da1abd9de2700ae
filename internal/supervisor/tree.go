// SPDX-License-Identifier: AGPL-3.0-or-later

// Package supervisor builds the suture v4 supervisor tree that runs
// AutoWL's four periodic background loops and its HTTP surface as
// restart-on-crash services, grounded on the teacher's
// internal/supervisor/tree.go.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/watchlaterhq/autowl/internal/logging"
)

// TreeConfig holds supervisor tree configuration. Defaults mirror the
// teacher's DefaultTreeConfig, which in turn mirrors suture's own
// built-in defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns production-ready defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is AutoWL's two-layer supervisor tree: "background" holds the four
// periodic loops (Token Refresh, WebSub Manager, Fallback Poller, Fan-Out
// Processor); "http" holds the webhook + diagnostics server. A crash in a
// background loop never takes down the HTTP surface a hub retry or a
// diagnostics poll depends on, and vice versa.
type Tree struct {
	root       *suture.Supervisor
	background *suture.Supervisor
	http       *suture.Supervisor
}

// New creates a new supervisor tree with the given configuration. Suture
// event logging is bridged to this system's zerolog logger by wrapping a
// small slog.Handler (zerologSlogHandler) in slog.New, since sutureslog.Handler
// only accepts a *slog.Logger and zerolog does not provide one natively;
// this small bridge replaces the teacher's dedicated
// internal/logging/slog_adapter.go, which existed only for this one call
// site and had no other consumer.
func New(config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	eventHook := (&sutureslog.Handler{Logger: slog.New(zerologSlogHandler{})}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("autowl", rootSpec)
	background := suture.New("background-loops", childSpec)
	httpLayer := suture.New("http-surface", childSpec)

	root.Add(background)
	root.Add(httpLayer)

	return &Tree{root: root, background: background, http: httpLayer}
}

// AddBackgroundService adds one of the four periodic loops.
func (t *Tree) AddBackgroundService(svc suture.Service) suture.ServiceToken {
	return t.background.Add(svc)
}

// AddHTTPService adds the webhook + diagnostics server.
func (t *Tree) AddHTTPService(svc suture.Service) suture.ServiceToken {
	return t.http.Add(svc)
}

// Serve starts the supervisor tree and blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	logging.Info().Msg("supervisor: tree starting")
	err := t.root.Serve(ctx)
	logging.Info().Err(err).Msg("supervisor: tree stopped")
	return err
}

// zerologSlogHandler is a minimal slog.Handler that re-emits every record
// through this system's zerolog logger, used only to satisfy
// sutureslog.Handler's *slog.Logger requirement.
type zerologSlogHandler struct{}

func (zerologSlogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (zerologSlogHandler) Handle(_ context.Context, r slog.Record) error {
	event := logging.Info()
	if r.Level >= slog.LevelError {
		event = logging.Error()
	} else if r.Level >= slog.LevelWarn {
		event = logging.Warn()
	}
	r.Attrs(func(a slog.Attr) bool {
		event = event.Str(a.Key, a.Value.String())
		return true
	})
	event.Msg("supervisor: " + r.Message)
	return nil
}

func (h zerologSlogHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h zerologSlogHandler) WithGroup(string) slog.Handler      { return h }
