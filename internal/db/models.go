package db

import "time"

// Ping states as reported by monitored jobs.
const (
	StateRun      = "run"
	StateComplete = "complete"
	StateFail     = "fail"
)

// MonitorConfig defaults applied on lazy creation.
const (
	DefaultExpectedInterval = 3600
	DefaultAlertThreshold   = 0
	DefaultMaxDuration      = 5
	DefaultFailureTolerance = 0
	DefaultGracePeriod      = 60
)

// Monitor is a named, recurring job being watched. Monitors are created
// implicitly by the log parsers on first-seen name and never auto-deleted.
type Monitor struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"uniqueIndex;not null" json:"name"`
	ProjectName string        `json:"projectName,omitempty"`
	GroupID     *uint         `gorm:"index" json:"groupId,omitempty"`
	Group       *MonitorGroup `json:"group,omitempty"`
	Tags        []Tag         `gorm:"many2many:monitor_tags" json:"tags,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// MonitorGroup bundles monitors for group-level notification fan-out.
type MonitorGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MonitorConfig holds the per-monitor scheduling and alerting knobs.
// One-to-one with Monitor, created lazily with the default values above.
type MonitorConfig struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	MonitorID        uint   `gorm:"uniqueIndex;not null" json:"monitorId"`
	ExpectedInterval int    `gorm:"default:3600" json:"expectedInterval"` // seconds
	AlertThreshold   int    `gorm:"default:0" json:"alertThreshold"`      // extra seconds before notifying
	CronExpression   string `json:"cronExpression,omitempty"`             // overrides ExpectedInterval when set
	MaxDuration      int    `gorm:"default:5" json:"maxDuration"`         // execution-time budget, seconds
	FailureTolerance int    `gorm:"default:0" json:"failureTolerance"`    // consecutive failures allowed
	GracePeriod      int    `gorm:"default:60" json:"gracePeriod"`        // seconds added before overdue
}

// Ping is one reported heartbeat event. Immutable once persisted.
type Ping struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MonitorID    uint      `gorm:"not null;index:idx_pings_monitor_ts" json:"monitorId"`
	UniqueID     string    `gorm:"not null" json:"uniqueId"`
	State        string    `gorm:"not null;default:run" json:"state"`
	Duration     *float64  `json:"duration,omitempty"` // milliseconds, complete pings only
	ExitCode     *int      `json:"exitCode,omitempty"`
	Host         string    `json:"host,omitempty"`
	Timestamp    int64     `gorm:"not null;index:idx_pings_monitor_ts" json:"timestamp"` // event time, unix seconds
	ReceivedAt   int64     `gorm:"not null" json:"receivedAt"`                           // ingestion time, unix seconds
	IP           string    `json:"ip,omitempty"`
	Error        string    `json:"error,omitempty"`
	RunSource    string    `json:"runSource,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
	CronSchedule string    `json:"cronSchedule,omitempty"` // schedule reported by the client
	Tags         []Tag     `gorm:"many2many:ping_tags" json:"tags,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Tag is a many-to-many label on monitors and pings.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// MonitorOverdueHistory is one continuous overdue period for a monitor.
// At most one unresolved record may exist per monitor at any time.
type MonitorOverdueHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MonitorID  uint      `gorm:"not null;index" json:"monitorId"`
	StartedAt  int64     `gorm:"not null" json:"startedAt"` // originally-expected run time, unix seconds
	ResolvedAt *int64    `json:"resolvedAt,omitempty"`
	Duration   int64     `json:"duration"` // seconds, computed on resolve
	IsResolved bool      `gorm:"default:false;index" json:"isResolved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Resolve closes the incident. Resolving an already-resolved record is a
// no-op and returns false.
func (h *MonitorOverdueHistory) Resolve(now int64) bool {
	if h.IsResolved {
		return false
	}
	h.IsResolved = true
	h.ResolvedAt = &now
	h.Duration = now - h.StartedAt
	return true
}

// NotificationChannel is a configured notification destination. Config is an
// opaque JSON blob interpreted by the adapter matching Type.
type NotificationChannel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Type      string    `gorm:"not null" json:"type"` // slack, email, sms, log, file
	Config    string    `gorm:"type:text" json:"config"`
	CreatedAt time.Time `json:"createdAt"`
}

// MonitorNotification subscribes a monitor to a channel, with independent
// flags per event type.
type MonitorNotification struct {
	ID              uint `gorm:"primaryKey" json:"id"`
	MonitorID       uint `gorm:"not null;index" json:"monitorId"`
	ChannelID       uint `gorm:"not null" json:"channelId"`
	NotifyOnFail    bool `gorm:"default:false" json:"notifyOnFail"`
	NotifyOnOverdue bool `gorm:"default:false" json:"notifyOnOverdue"`
	NotifyOnResolve bool `gorm:"default:false" json:"notifyOnResolve"`
}

// GroupNotification mirrors MonitorNotification keyed by group membership.
type GroupNotification struct {
	ID              uint `gorm:"primaryKey" json:"id"`
	GroupID         uint `gorm:"not null;index" json:"groupId"`
	ChannelID       uint `gorm:"not null" json:"channelId"`
	NotifyOnFail    bool `gorm:"default:false" json:"notifyOnFail"`
	NotifyOnOverdue bool `gorm:"default:false" json:"notifyOnOverdue"`
	NotifyOnResolve bool `gorm:"default:false" json:"notifyOnResolve"`
}

// NotificationHistory is the append-only audit trail of sent notifications.
type NotificationHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MonitorID uint      `gorm:"not null;index" json:"monitorId"`
	ChannelID uint      `gorm:"not null" json:"channelId"`
	EventType string    `gorm:"not null" json:"eventType"` // fail, overdue, resolve
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
