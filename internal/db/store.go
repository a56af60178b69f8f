package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store is the gorm-backed repository layer. Consumers depend on narrow
// interfaces declared package-side; Store satisfies all of them.
type Store struct {
	gdb *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{gdb: gdb}
}

// Transaction runs fn against a transactional store. Used by the overdue
// sweep so the check-then-act on open incidents is atomic.
func (s *Store) Transaction(ctx context.Context, fn func(*Store) error) error {
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// --- monitors ---

func (s *Store) FindMonitorByID(ctx context.Context, id uint) (*Monitor, error) {
	var m Monitor
	err := s.gdb.WithContext(ctx).Preload("Group").Preload("Tags").First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find monitor %d: %w", id, err)
	}
	return &m, nil
}

func (s *Store) FindMonitorByName(ctx context.Context, name string) (*Monitor, error) {
	var m Monitor
	err := s.gdb.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find monitor %q: %w", name, err)
	}
	return &m, nil
}

// GetOrCreateMonitor returns the monitor with the given name, creating it on
// first sight. A changed project name is written through.
func (s *Store) GetOrCreateMonitor(ctx context.Context, name, projectName string) (*Monitor, error) {
	m, err := s.FindMonitorByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &Monitor{Name: name, ProjectName: projectName}
		if err := s.gdb.WithContext(ctx).Create(m).Error; err != nil {
			return nil, fmt.Errorf("create monitor %q: %w", name, err)
		}
		return m, nil
	}
	if projectName != "" && m.ProjectName != projectName {
		m.ProjectName = projectName
		if err := s.gdb.WithContext(ctx).Save(m).Error; err != nil {
			return nil, fmt.Errorf("update monitor %q: %w", name, err)
		}
	}
	return m, nil
}

func (s *Store) SaveMonitor(ctx context.Context, m *Monitor) error {
	return s.gdb.WithContext(ctx).Save(m).Error
}

func (s *Store) Monitors(ctx context.Context) ([]Monitor, error) {
	var out []Monitor
	err := s.gdb.WithContext(ctx).Preload("Group").Preload("Tags").Order("name").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	return out, nil
}

func (s *Store) AttachMonitorTag(ctx context.Context, m *Monitor, tag *Tag) error {
	return s.gdb.WithContext(ctx).Model(m).Association("Tags").Append(tag)
}

// --- configs ---

// GetOrCreateConfig returns the monitor's config, creating one with the
// default values on first access.
func (s *Store) GetOrCreateConfig(ctx context.Context, monitorID uint) (*MonitorConfig, error) {
	var cfg MonitorConfig
	err := s.gdb.WithContext(ctx).Where("monitor_id = ?", monitorID).First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find config for monitor %d: %w", monitorID, err)
	}
	cfg = MonitorConfig{
		MonitorID:        monitorID,
		ExpectedInterval: DefaultExpectedInterval,
		AlertThreshold:   DefaultAlertThreshold,
		MaxDuration:      DefaultMaxDuration,
		FailureTolerance: DefaultFailureTolerance,
		GracePeriod:      DefaultGracePeriod,
	}
	if err := s.gdb.WithContext(ctx).Create(&cfg).Error; err != nil {
		return nil, fmt.Errorf("create config for monitor %d: %w", monitorID, err)
	}
	return &cfg, nil
}

func (s *Store) SaveConfig(ctx context.Context, cfg *MonitorConfig) error {
	return s.gdb.WithContext(ctx).Save(cfg).Error
}

// --- pings ---

func (s *Store) CreatePing(ctx context.Context, p *Ping) error {
	if err := s.gdb.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create ping for monitor %d: %w", p.MonitorID, err)
	}
	return nil
}

// LastPing returns the monitor's most recent ping by event time, or nil.
func (s *Store) LastPing(ctx context.Context, monitorID uint) (*Ping, error) {
	pings, err := s.RecentPings(ctx, monitorID, 1, "")
	if err != nil {
		return nil, err
	}
	if len(pings) == 0 {
		return nil, nil
	}
	return &pings[0], nil
}

// RecentPings returns up to limit pings ordered newest first, optionally
// filtered by state.
func (s *Store) RecentPings(ctx context.Context, monitorID uint, limit int, state string) ([]Ping, error) {
	q := s.gdb.WithContext(ctx).Where("monitor_id = ?", monitorID)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var out []Ping
	err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent pings for monitor %d: %w", monitorID, err)
	}
	return out, nil
}

// PingsSince returns pings with event time at or after since, oldest first.
func (s *Store) PingsSince(ctx context.Context, monitorID uint, since int64) ([]Ping, error) {
	var out []Ping
	err := s.gdb.WithContext(ctx).
		Where("monitor_id = ? AND timestamp >= ?", monitorID, since).
		Order("timestamp ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("pings since %d for monitor %d: %w", since, monitorID, err)
	}
	return out, nil
}

// --- tags ---

func (s *Store) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	var tag Tag
	err := s.gdb.WithContext(ctx).Where(Tag{Name: name}).FirstOrCreate(&tag).Error
	if err != nil {
		return nil, fmt.Errorf("get or create tag %q: %w", name, err)
	}
	return &tag, nil
}

// --- overdue incidents ---

// UnresolvedOverdue returns the monitor's open incident, or nil.
func (s *Store) UnresolvedOverdue(ctx context.Context, monitorID uint) (*MonitorOverdueHistory, error) {
	var h MonitorOverdueHistory
	err := s.gdb.WithContext(ctx).
		Where("monitor_id = ? AND is_resolved = ?", monitorID, false).
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unresolved overdue for monitor %d: %w", monitorID, err)
	}
	return &h, nil
}

func (s *Store) CreateOverdue(ctx context.Context, h *MonitorOverdueHistory) error {
	if err := s.gdb.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("create overdue record for monitor %d: %w", h.MonitorID, err)
	}
	return nil
}

func (s *Store) SaveOverdue(ctx context.Context, h *MonitorOverdueHistory) error {
	return s.gdb.WithContext(ctx).Save(h).Error
}

func (s *Store) OverdueHistory(ctx context.Context, monitorID uint, limit int) ([]MonitorOverdueHistory, error) {
	var out []MonitorOverdueHistory
	err := s.gdb.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("started_at DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("overdue history for monitor %d: %w", monitorID, err)
	}
	return out, nil
}

// --- notification subscriptions and history ---

// Subscription is a channel joined with its per-event-type flags.
type Subscription struct {
	Channel         NotificationChannel
	NotifyOnFail    bool
	NotifyOnOverdue bool
	NotifyOnResolve bool
}

type subscriptionRow struct {
	ID              uint
	Name            string
	Type            string
	Config          string
	NotifyOnFail    bool
	NotifyOnOverdue bool
	NotifyOnResolve bool
}

func rowsToSubscriptions(rows []subscriptionRow) []Subscription {
	out := make([]Subscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, Subscription{
			Channel:         NotificationChannel{ID: r.ID, Name: r.Name, Type: r.Type, Config: r.Config},
			NotifyOnFail:    r.NotifyOnFail,
			NotifyOnOverdue: r.NotifyOnOverdue,
			NotifyOnResolve: r.NotifyOnResolve,
		})
	}
	return out
}

// MonitorSubscriptions returns all channels subscribed to the monitor.
func (s *Store) MonitorSubscriptions(ctx context.Context, monitorID uint) ([]Subscription, error) {
	var rows []subscriptionRow
	err := s.gdb.WithContext(ctx).
		Table("notification_channels AS nc").
		Select("nc.id, nc.name, nc.type, nc.config, mn.notify_on_fail, mn.notify_on_overdue, mn.notify_on_resolve").
		Joins("JOIN monitor_notifications mn ON mn.channel_id = nc.id").
		Where("mn.monitor_id = ?", monitorID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("subscriptions for monitor %d: %w", monitorID, err)
	}
	return rowsToSubscriptions(rows), nil
}

// GroupSubscriptions returns all channels subscribed to the group.
func (s *Store) GroupSubscriptions(ctx context.Context, groupID uint) ([]Subscription, error) {
	var rows []subscriptionRow
	err := s.gdb.WithContext(ctx).
		Table("notification_channels AS nc").
		Select("nc.id, nc.name, nc.type, nc.config, gn.notify_on_fail, gn.notify_on_overdue, gn.notify_on_resolve").
		Joins("JOIN group_notifications gn ON gn.channel_id = nc.id").
		Where("gn.group_id = ?", groupID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("subscriptions for group %d: %w", groupID, err)
	}
	return rowsToSubscriptions(rows), nil
}

func (s *Store) AppendNotificationHistory(ctx context.Context, monitorID, channelID uint, eventType, message string) error {
	h := NotificationHistory{
		MonitorID: monitorID,
		ChannelID: channelID,
		EventType: eventType,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := s.gdb.WithContext(ctx).Create(&h).Error; err != nil {
		return fmt.Errorf("append notification history: %w", err)
	}
	return nil
}
