// Package alert implements the overdue-detection and notification-dispatch
// engine: the per-monitor liveness state machine, the periodic
// reconciliation sweep and the fan-out to channel adapters.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cronwatch/internal/db"
	"cronwatch/internal/metrics"
	"cronwatch/internal/schedule"
)

// Notification event types.
const (
	EventFail    = "fail"
	EventOverdue = "overdue"
	EventResolve = "resolve"
)

// Service raises and resolves overdue incidents, reacts to ping state
// transitions and fans notifications out to subscribed channels.
type Service struct {
	store   *db.Store
	sched   *schedule.Service
	factory AdapterFactory
	now     func() time.Time

	// Serializes sweep invocations within this process; the partial unique
	// index on open incidents guards against a second process.
	sweepMu sync.Mutex
}

func NewService(store *db.Store, sched *schedule.Service, factory AdapterFactory) *Service {
	if factory == nil {
		factory = NewAdapter
	}
	return &Service{store: store, sched: sched, factory: factory, now: time.Now}
}

// SendNotifications fans one event out to every channel subscribed to the
// monitor for that event type. Returns the per-channel result map; one
// channel failing never blocks another's delivery.
func (s *Service) SendNotifications(ctx context.Context, monitorID uint, eventType, message string) map[uint]bool {
	results := make(map[uint]bool)
	subs, err := s.store.MonitorSubscriptions(ctx, monitorID)
	if err != nil {
		log.Error().Err(err).Uint("monitor_id", monitorID).Msg("[Notify] Failed to load subscriptions")
		return results
	}
	for _, sub := range subs {
		if !subscribed(sub, eventType) {
			continue
		}
		results[sub.Channel.ID] = s.deliver(ctx, monitorID, sub.Channel, eventType, message)
	}
	return results
}

// SendGroupNotifications mirrors SendNotifications keyed by group
// membership. History records are attributed to the monitor that triggered
// the event.
func (s *Service) SendGroupNotifications(ctx context.Context, groupID, monitorID uint, eventType, message string) map[uint]bool {
	results := make(map[uint]bool)
	subs, err := s.store.GroupSubscriptions(ctx, groupID)
	if err != nil {
		log.Error().Err(err).Uint("group_id", groupID).Msg("[Notify] Failed to load group subscriptions")
		return results
	}
	for _, sub := range subs {
		if !subscribed(sub, eventType) {
			continue
		}
		results[sub.Channel.ID] = s.deliver(ctx, monitorID, sub.Channel, eventType, message)
	}
	return results
}

func subscribed(sub db.Subscription, eventType string) bool {
	switch eventType {
	case EventFail:
		return sub.NotifyOnFail
	case EventOverdue:
		return sub.NotifyOnOverdue
	case EventResolve:
		return sub.NotifyOnResolve
	}
	return false
}

// deliver sends one message through one channel. Malformed config, unknown
// type and delivery failure all map to a false result; they never abort the
// remaining fan-out.
func (s *Service) deliver(ctx context.Context, monitorID uint, ch db.NotificationChannel, eventType, message string) bool {
	if !json.Valid([]byte(ch.Config)) {
		log.Error().Str("channel", ch.Name).Msg("[Notify] Invalid channel configuration")
		metrics.NotificationsSent.WithLabelValues(ch.Type, eventType, "error").Inc()
		return false
	}

	adapter, err := s.factory(ch.Type)
	if err != nil {
		log.Error().Err(err).Str("channel", ch.Name).Msg("[Notify] Failed to create adapter")
		metrics.NotificationsSent.WithLabelValues(ch.Type, eventType, "error").Inc()
		return false
	}

	if err := adapter.Send(ctx, message, json.RawMessage(ch.Config)); err != nil {
		log.Error().Err(err).Str("channel", ch.Name).Str("event", eventType).Msg("[Notify] Delivery failed")
		metrics.NotificationsSent.WithLabelValues(ch.Type, eventType, "error").Inc()
		return false
	}

	if err := s.store.AppendNotificationHistory(ctx, monitorID, ch.ID, eventType, message); err != nil {
		log.Warn().Err(err).Str("channel", ch.Name).Msg("[Notify] Failed to record notification history")
	}
	metrics.NotificationsSent.WithLabelValues(ch.Type, eventType, "ok").Inc()
	return true
}

// dispatch fans an event out to the monitor's channels and, when the
// monitor belongs to a group, to the group's channels as well.
func (s *Service) dispatch(ctx context.Context, monitor *db.Monitor, eventType, message string) {
	s.SendNotifications(ctx, monitor.ID, eventType, message)
	if monitor.GroupID != nil {
		s.SendGroupNotifications(ctx, *monitor.GroupID, monitor.ID, eventType, message)
	}
}

// CheckOverdueMonitors is the reconciliation sweep: it compares every
// monitor's expected next run against its last ping, opens an overdue
// incident when the deadline passed and resolves the open incident when the
// monitor is back on schedule. Returns the number of notifications raised.
func (s *Service) CheckOverdueMonitors(ctx context.Context) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	monitors, err := s.store.Monitors(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	count := 0
	for i := range monitors {
		sent, err := s.reconcileMonitor(ctx, &monitors[i])
		if err != nil {
			log.Error().Err(err).Str("monitor", monitors[i].Name).Msg("[Sweep] Reconciliation failed")
			continue
		}
		if sent {
			count++
		}
	}
	return count, nil
}

func (s *Service) reconcileMonitor(ctx context.Context, monitor *db.Monitor) (bool, error) {
	lastPing, err := s.store.LastPing(ctx, monitor.ID)
	if err != nil {
		return false, err
	}
	if lastPing == nil {
		// No pings yet, liveness is unknowable.
		return false, nil
	}

	cfg, err := s.store.GetOrCreateConfig(ctx, monitor.ID)
	if err != nil {
		return false, err
	}

	interval, err := s.sched.ExpectedIntervalFor(ctx, monitor.ID)
	if err != nil {
		return false, err
	}
	if interval <= 0 {
		return false, nil
	}

	now := s.now().Unix()
	expectedNext := lastPing.Timestamp + int64(interval)
	deadline := expectedNext + int64(cfg.GracePeriod) + int64(cfg.AlertThreshold)

	switch {
	case now > deadline:
		opened := false
		err := s.store.Transaction(ctx, func(tx *db.Store) error {
			existing, err := tx.UnresolvedOverdue(ctx, monitor.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
			// Anchor the incident at the originally-expected run time, not
			// at sweep time.
			if err := tx.CreateOverdue(ctx, &db.MonitorOverdueHistory{
				MonitorID: monitor.ID,
				StartedAt: expectedNext,
			}); err != nil {
				return err
			}
			opened = true
			return nil
		})
		if err != nil || !opened {
			return false, err
		}

		metrics.OverdueRaised.Inc()
		minutesLate := (now - expectedNext) / 60
		message := fmt.Sprintf("Monitor '%s' is overdue by %d minutes.", monitor.Name, minutesLate)
		message += monitorContext(monitor)
		s.dispatch(ctx, monitor, EventOverdue, message)
		return true, nil

	case now <= expectedNext && lastPing.State != db.StateFail:
		resolved := false
		err := s.store.Transaction(ctx, func(tx *db.Store) error {
			existing, err := tx.UnresolvedOverdue(ctx, monitor.ID)
			if err != nil {
				return err
			}
			if existing == nil || !existing.Resolve(s.now().Unix()) {
				return nil
			}
			if err := tx.SaveOverdue(ctx, existing); err != nil {
				return err
			}
			resolved = true
			return nil
		})
		if err != nil || !resolved {
			return false, err
		}

		metrics.OverdueResolved.Inc()
		message := fmt.Sprintf("Monitor '%s' is now back on schedule.", monitor.Name)
		message += monitorContext(monitor)
		s.dispatch(ctx, monitor, EventResolve, message)
		return true, nil
	}
	return false, nil
}

// monitorContext renders the project, group and tag enrichment appended to
// sweep notifications.
func monitorContext(monitor *db.Monitor) string {
	var b strings.Builder
	if monitor.ProjectName != "" {
		fmt.Fprintf(&b, " Project: %s.", monitor.ProjectName)
	}
	if monitor.Group != nil {
		fmt.Fprintf(&b, " Group: %s.", monitor.Group.Name)
	}
	if len(monitor.Tags) > 0 {
		names := make([]string, len(monitor.Tags))
		for i, t := range monitor.Tags {
			names[i] = t.Name
		}
		fmt.Fprintf(&b, " Tags: %s.", strings.Join(names, ", "))
	}
	return b.String()
}

// HandlePingTransition reacts to a newly persisted ping by comparing it with
// the immediately preceding ping for the same monitor. First-seen failure
// fires a FAIL notification, subject to the failure tolerance; recovery
// after failure fires a RESOLVE notification. This channel is independent of
// the sweep.
func (s *Service) HandlePingTransition(ctx context.Context, monitor *db.Monitor, ping *db.Ping) {
	recent, err := s.store.RecentPings(ctx, monitor.ID, 2, "")
	if err != nil {
		log.Error().Err(err).Str("monitor", monitor.Name).Msg("[Transition] Failed to load recent pings")
		return
	}

	var previous *db.Ping
	for i := range recent {
		if recent[i].ID != ping.ID {
			previous = &recent[i]
			break
		}
	}
	if previous == nil {
		// First ping for this monitor.
		return
	}

	// The tolerance check runs on every failing ping, not just the first of
	// a streak: with a tolerance of N the streak's N+1th failure is the one
	// that notifies.
	if ping.State == db.StateFail {
		s.handleFail(ctx, monitor, ping)
	}
	if ping.State == db.StateComplete && previous.State == db.StateFail {
		message := fmt.Sprintf("Monitor '%s' is now working properly", monitor.Name)
		if monitor.ProjectName != "" {
			message += fmt.Sprintf(" (Project: %s)", monitor.ProjectName)
		}
		s.dispatch(ctx, monitor, EventResolve, message)
	}
}

func (s *Service) handleFail(ctx context.Context, monitor *db.Monitor, ping *db.Ping) {
	cfg, err := s.store.GetOrCreateConfig(ctx, monitor.ID)
	if err != nil {
		log.Error().Err(err).Str("monitor", monitor.Name).Msg("[Transition] Failed to load config")
		return
	}

	// Occasional failures below the tolerance are treated as noise. The
	// tolerance is evaluated on each failing ping independently.
	failing, err := s.store.RecentPings(ctx, monitor.ID, cfg.FailureTolerance+1, db.StateFail)
	if err != nil {
		log.Error().Err(err).Str("monitor", monitor.Name).Msg("[Transition] Failed to count failing pings")
		return
	}
	if len(failing) <= cfg.FailureTolerance {
		log.Debug().Str("monitor", monitor.Name).Int("failures", len(failing)).
			Int("tolerance", cfg.FailureTolerance).Msg("[Transition] Failure within tolerance, suppressing")
		return
	}

	message := fmt.Sprintf("Monitor '%s' has failed", monitor.Name)
	if monitor.ProjectName != "" {
		message += fmt.Sprintf(" (Project: %s)", monitor.ProjectName)
	}
	if ping.Error != "" {
		message += ": " + ping.Error
	}
	s.dispatch(ctx, monitor, EventFail, message)
}

// IsDurationWithinLimit reports whether a completed run's duration (in
// milliseconds) fits the monitor's configured execution-time budget. Pure
// predicate, no side effects.
func (s *Service) IsDurationWithinLimit(ctx context.Context, monitorID uint, durationMs float64) (bool, error) {
	cfg, err := s.store.GetOrCreateConfig(ctx, monitorID)
	if err != nil {
		return false, err
	}
	return durationMs/1000 <= float64(cfg.MaxDuration), nil
}
