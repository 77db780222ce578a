// Package scheduler implements the periodic drivers that tie
// the throttle, reconnect, and dispatch subsystems into a running control
// loop. Each tick is idempotent and skips work when nothing is due;
// ticks run on their own goroutine and never block one another.
package scheduler

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/domain"
	"comradarr/internal/service/dispatcher"
	"comradarr/internal/service/reconnect"
	"comradarr/internal/service/selector"
	"comradarr/internal/service/throttle"
)

// ConnectorClientFactory resolves a domain.ConnectorClient for a managed
// connector. Shared with the reconnect service's dependency of the same
// name so the scheduler doesn't need an adapter-level import.
type ConnectorClientFactory interface {
	Build(ctx domain.Context, conn domain.Connector) (domain.ConnectorClient, error)
}

// Intervals holds the cadence for each of the three tick drivers.
type Intervals struct {
	Throttle  time.Duration
	Reconnect time.Duration
	Dispatch  time.Duration
}

// Scheduler runs the three periodic drivers: throttle window
// resets, reconnect sweeps, and per-connector dispatch passes. It owns no
// counters itself; all state lives behind the enforcer/registry/reconnect
// services and their repositories.
type Scheduler struct {
	connectors domain.ConnectorRepository
	enforcer   *throttle.Enforcer
	reconnect  *reconnect.Service
	selector   *selector.Service
	dispatcher *dispatcher.Dispatcher
	queue      domain.QueueRepository
	clients    ConnectorClientFactory
	intervals  Intervals
	logger     *slog.Logger
}

// New constructs a Scheduler. selectorSvc may be nil: the discovery pass
// is then skipped and the dispatch tick only drains already-queued rows
// (useful when an external collaborator owns discovery instead). queue may
// be nil to skip the queue-depth gauge.
func New(
	connectors domain.ConnectorRepository,
	enforcer *throttle.Enforcer,
	reconnectSvc *reconnect.Service,
	selectorSvc *selector.Service,
	dispatch *dispatcher.Dispatcher,
	queue domain.QueueRepository,
	clients ConnectorClientFactory,
	intervals Intervals,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		connectors: connectors,
		enforcer:   enforcer,
		reconnect:  reconnectSvc,
		selector:   selectorSvc,
		dispatcher: dispatch,
		queue:      queue,
		clients:    clients,
		intervals:  intervals,
		logger:     logger,
	}
}

// Run blocks, driving all three tick loops until ctx is cancelled. Each
// loop runs on its own goroutine; a storage fault aborts only that tick, the
// scheduler retries on the next interval.
func (s *Scheduler) Run(ctx domain.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.loop(gctx, s.intervals.Throttle, "throttle_tick", s.runThrottleTick)
		return nil
	})
	g.Go(func() error {
		s.loop(gctx, s.intervals.Reconnect, "reconnect_tick", s.runReconnectTick)
		return nil
	})
	g.Go(func() error {
		s.loop(gctx, s.intervals.Dispatch, "dispatch_tick", s.runDispatchTick)
		return nil
	})

	return g.Wait()
}

// loop runs fn every interval until ctx is done, logging (but never
// propagating) a tick's own error so one failing tick cannot take down the
// other two drivers.
func (s *Scheduler) loop(ctx domain.Context, interval time.Duration, name string, fn func(domain.Context) error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				s.logger.Error("tick failed", slog.String("tick", name), slog.Any("error", err))
			}
		}
	}
}

// runThrottleTick drives the throttle window tick: reset expired
// minute/day windows and clear expired pauses.
func (s *Scheduler) runThrottleTick(ctx domain.Context) error {
	result, err := s.enforcer.ResetExpiredWindows(ctx)
	if err != nil {
		return err
	}
	if result.MinuteReset > 0 || result.DayReset > 0 || result.PausesCleared > 0 {
		s.logger.Debug("throttle windows reset",
			slog.Int("minute_reset", result.MinuteReset),
			slog.Int("day_reset", result.DayReset),
			slog.Int("pauses_cleared", result.PausesCleared))
	}
	return nil
}

// runReconnectTick drives the reconnect sweep.
func (s *Scheduler) runReconnectTick(ctx domain.Context) error {
	summary, err := s.reconnect.ProcessReconnections(ctx)
	if err != nil {
		return err
	}
	if summary.Attempted > 0 {
		s.logger.Info("reconnect tick",
			slog.Int("attempted", summary.Attempted),
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("still_down", summary.StillDown),
			slog.Int("skipped", summary.Skipped))
	}
	return nil
}

// runDispatchTick iterates enabled, non-paused, non-offline connectors in
// parallel and runs one dispatcher pass per connector; passes across
// connectors are independent.
func (s *Scheduler) runDispatchTick(ctx domain.Context) error {
	conns, err := s.connectors.ListDispatchable(ctx)
	if err != nil {
		return err
	}

	if s.queue != nil {
		if depths, err := s.queue.DepthByConnector(ctx); err == nil {
			for connectorID, depth := range depths {
				observability.SetRequestQueueDepth(strconv.FormatInt(connectorID, 10), depth)
			}
		}
		// Depth is a best-effort gauge; a failed read never blocks the tick.
	}

	if len(conns) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			if s.selector != nil {
				if _, err := s.selector.Run(gctx, conn.ID); err != nil {
					s.logger.Error("dispatch tick: selector pass failed",
						slog.Int64("connector_id", conn.ID), slog.Any("error", err))
				}
			}

			client, err := s.clients.Build(gctx, conn)
			if err != nil {
				s.logger.Error("dispatch tick: client build failed",
					slog.Int64("connector_id", conn.ID), slog.Any("error", err))
				return nil
			}

			result, runErr := s.dispatcher.Run(gctx, conn.ID, client)
			if runErr != nil {
				s.logger.Error("dispatch tick: pass failed",
					slog.Int64("connector_id", conn.ID), slog.Any("error", runErr))
				return nil
			}
			if result.BatchesAttempted > 0 {
				s.logger.Info("dispatch pass complete",
					slog.Int64("connector_id", conn.ID),
					slog.Int("dispatched", result.BatchesDispatched),
					slog.Int("skipped", result.BatchesSkipped),
					slog.Bool("stopped_early", result.StoppedEarly))
			}
			return nil
		})
	}
	// Errors are already logged per-connector above; g.Wait only surfaces
	// ctx cancellation, never a single connector's failure.
	return g.Wait()
}
