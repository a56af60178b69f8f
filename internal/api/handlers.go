package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"cronwatch/internal/config"
	"cronwatch/internal/db"
	"cronwatch/internal/schedule"
	"cronwatch/internal/stats"
)

const logTimestampLayout = "2006-01-02 15:04:05"

type handlers struct {
	cfg   *config.Config
	store *db.Store
	sched *schedule.Service
	stats *stats.Service

	// Guards appends to the history and API log files.
	logMu sync.Mutex
}

// pingPayload is the intake body. Unknown fields are preserved nowhere;
// the persisted history line carries exactly these keys.
type pingPayload struct {
	Monitor      string   `json:"monitor"`
	Project      string   `json:"project,omitempty"`
	UniqueID     string   `json:"unique_id"`
	State        string   `json:"state"`
	Duration     *float64 `json:"duration,omitempty"`
	ExitCode     *int     `json:"exit_code,omitempty"`
	Host         string   `json:"host,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"`
	ReceivedAt   int64    `json:"received_at"`
	IP           string   `json:"ip"`
	Error        string   `json:"error,omitempty"`
	Tags         []string `json:"tags"`
	RunSource    string   `json:"run_source,omitempty"`
	Timezone     string   `json:"timezone,omitempty"`
	CronSchedule string   `json:"cron_schedule,omitempty"`
}

func (h *handlers) pingTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "API is up",
		"timestamp": time.Now().Unix(),
	})
}

// receivePing validates the ping body, appends a single-line history entry
// and writes the request log line consumed by the fallback parser.
func (h *handlers) receivePing(c *gin.Context) {
	var payload pingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.appendAPILog("ERROR", "Nieprawidłowy format JSON")
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid JSON body"})
		return
	}

	for field, value := range map[string]string{
		"monitor":   payload.Monitor,
		"state":     payload.State,
		"unique_id": payload.UniqueID,
	} {
		if value == "" {
			h.appendAPILog("ERROR", "Brak wymaganego pola: "+field)
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing required field: " + field})
			return
		}
	}

	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	payload.ReceivedAt = time.Now().Unix()
	payload.IP = c.ClientIP()

	if err := h.appendHistory(&payload); err != nil {
		log.Error().Err(err).Msg("[API] Failed to append ping history")
		h.appendAPILog("ERROR", "Nie można zapisać danych do pliku historii")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "cannot persist ping"})
		return
	}

	h.appendAPILog("INFO", formatPingLogMessage(&payload))

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"message":     "ping recorded",
		"monitor":     payload.Monitor,
		"state":       payload.State,
		"tags":        payload.Tags,
		"received_at": payload.ReceivedAt,
	})
}

// appendHistory writes one "[timestamp] {json}" line. The JSON must stay on
// a single line so the history parser can consume it.
func (h *handlers) appendHistory(payload *pingPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(logTimestampLayout), data)

	h.logMu.Lock()
	defer h.logMu.Unlock()
	return appendLine(h.cfg.HistoryLogPath, line)
}

func (h *handlers) appendAPILog(level, message string) {
	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format(logTimestampLayout), level, message)
	h.logMu.Lock()
	defer h.logMu.Unlock()
	if err := appendLine(h.cfg.APILogPath, line); err != nil {
		log.Warn().Err(err).Msg("[API] Failed to append request log")
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func formatPingLogMessage(p *pingPayload) string {
	msg := fmt.Sprintf("Otrzymano ping '%s' dla monitora '%s'", p.State, p.Monitor)
	if p.Duration != nil {
		msg += fmt.Sprintf(" (czas: %gs)", *p.Duration)
	}
	if len(p.Tags) > 0 {
		msg += " [Tagi: " + strings.Join(p.Tags, ", ") + "]"
	}
	if p.RunSource != "" {
		msg += " [Źródło: " + p.RunSource + "]"
	}
	if p.Timezone != "" {
		msg += " [Strefa: " + p.Timezone + "]"
	}
	if p.CronSchedule != "" {
		msg += " [Cron: " + p.CronSchedule + "]"
	}
	return msg
}

type monitorSummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	ProjectName string `json:"project_name,omitempty"`
	Group       string `json:"group,omitempty"`
	LastState   string `json:"last_state,omitempty"`
	LastPingAt  int64  `json:"last_ping_at,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
	NextRun     string `json:"next_run,omitempty"`
}

func (h *handlers) listMonitors(c *gin.Context) {
	ctx := c.Request.Context()
	monitors, err := h.store.Monitors(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to list monitors"})
		return
	}

	out := make([]monitorSummary, 0, len(monitors))
	for i := range monitors {
		m := &monitors[i]
		summary := monitorSummary{ID: m.ID, Name: m.Name, ProjectName: m.ProjectName}
		if m.Group != nil {
			summary.Group = m.Group.Name
		}
		if last, err := h.store.LastPing(ctx, m.ID); err == nil && last != nil {
			summary.LastState = last.State
			summary.LastPingAt = last.Timestamp
		}
		if sched, err := h.sched.ReadableSchedule(ctx, m.ID); err == nil {
			summary.Schedule = sched
		}
		if next, err := h.sched.ExpectedNextRun(ctx, m.ID); err == nil {
			summary.NextRun = next
		}
		out = append(out, summary)
	}
	c.JSON(http.StatusOK, gin.H{"monitors": out})
}

func (h *handlers) getMonitor(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := h.monitorID(c)
	if !ok {
		return
	}

	monitor, err := h.store.FindMonitorByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load monitor"})
		return
	}
	if monitor == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "monitor not found"})
		return
	}

	cfg, err := h.store.GetOrCreateConfig(ctx, monitor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load config"})
		return
	}
	pings, err := h.store.RecentPings(ctx, monitor.ID, 20, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load pings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"monitor":      monitor,
		"config":       cfg,
		"recent_pings": pings,
	})
}

func (h *handlers) getMonitorStats(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := h.monitorID(c)
	if !ok {
		return
	}

	hours := 24
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid hours parameter"})
			return
		}
		hours = parsed
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	result, err := h.stats.MonitorStats(ctx, id, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"window_hours": hours, "stats": result})
}

func (h *handlers) getOverdueHistory(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := h.monitorID(c)
	if !ok {
		return
	}

	history, err := h.store.OverdueHistory(ctx, id, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load overdue history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdue": history})
}

func (h *handlers) monitorID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid monitor id"})
		return 0, false
	}
	return uint(id), true
}
