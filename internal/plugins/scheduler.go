// Package plugins - scheduler.go
//
// Cron-based job scheduling for plugins, letting a source or controller
// plugin run periodic tasks (reconnect to a flaky serial port, poll an
// external feed) without spinning up its own ticker goroutine.
//
// Architecture: one shared *cron.Cron runs in a single background
// goroutine; each plugin gets its own PluginScheduler wrapping it, so job
// names only need to be unique within a plugin, not across the whole
// process. Every scheduled job is wrapped with panic recovery: a bug in
// one plugin's job shouldn't take down the shared cron instance or any
// other plugin's jobs.
package plugins

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
)

// PluginScheduler provides cron-based scheduling scoped to one plugin.
type PluginScheduler struct {
	cron       *cron.Cron
	pluginName string
	jobIDs     map[string]cron.EntryID
	log        zerolog.Logger
}

// NewPluginScheduler wraps a shared cron instance with a per-plugin job
// namespace.
func NewPluginScheduler(cronInstance *cron.Cron, pluginName string) *PluginScheduler {
	return &PluginScheduler{
		cron:       cronInstance,
		pluginName: pluginName,
		jobIDs:     make(map[string]cron.EntryID),
		log:        logger.Component("scheduler").With().Str("plugin", pluginName).Logger(),
	}
}

// Schedule registers job under jobName to run on cronExpr (standard
// 5-field cron syntax, or a shortcut like "@hourly"). Scheduling under an
// existing jobName replaces the previous schedule.
func (ps *PluginScheduler) Schedule(jobName string, cronExpr string, job func()) error {
	if existingID, exists := ps.jobIDs[jobName]; exists {
		ps.cron.Remove(existingID)
		delete(ps.jobIDs, jobName)
	}

	wrappedJob := func() {
		defer func() {
			if r := recover(); r != nil {
				ps.log.Error().Str("job", jobName).Interface("panic", r).Msg("scheduled job panicked")
			}
		}()
		ps.log.Debug().Str("job", jobName).Msg("running scheduled job")
		job()
	}

	entryID, err := ps.cron.AddFunc(cronExpr, wrappedJob)
	if err != nil {
		return fmt.Errorf("schedule job %s for plugin %s: %w", jobName, ps.pluginName, err)
	}

	ps.jobIDs[jobName] = entryID
	ps.log.Info().Str("job", jobName).Str("cron", cronExpr).Msg("scheduled job")
	return nil
}

// Remove stops and forgets jobName. Safe to call when jobName does not
// exist.
func (ps *PluginScheduler) Remove(jobName string) {
	if entryID, exists := ps.jobIDs[jobName]; exists {
		ps.cron.Remove(entryID)
		delete(ps.jobIDs, jobName)
		ps.log.Info().Str("job", jobName).Msg("removed scheduled job")
	}
}

// RemoveAll stops every job scheduled by this plugin. Stopping a plugin
// does not call it; a stopped plugin's jobs keep running until it is
// called.
func (ps *PluginScheduler) RemoveAll() {
	for jobName, entryID := range ps.jobIDs {
		ps.cron.Remove(entryID)
		ps.log.Info().Str("job", jobName).Msg("removed scheduled job")
	}
	ps.jobIDs = make(map[string]cron.EntryID)
}

// ListJobs returns the names of jobs currently scheduled by this plugin,
// in no particular order.
func (ps *PluginScheduler) ListJobs() []string {
	jobs := make([]string, 0, len(ps.jobIDs))
	for jobName := range ps.jobIDs {
		jobs = append(jobs, jobName)
	}
	return jobs
}

// IsScheduled reports whether jobName currently has an active schedule.
func (ps *PluginScheduler) IsScheduled(jobName string) bool {
	_, exists := ps.jobIDs[jobName]
	return exists
}

// ScheduleInterval is a convenience wrapper converting a human-readable
// interval ("5m", "hourly", "daily", ...) to a cron expression before
// calling Schedule.
func (ps *PluginScheduler) ScheduleInterval(jobName string, interval string, job func()) error {
	var cronExpr string

	switch interval {
	case "1m", "1 minute":
		cronExpr = "* * * * *"
	case "5m", "5 minutes":
		cronExpr = "*/5 * * * *"
	case "10m", "10 minutes":
		cronExpr = "*/10 * * * *"
	case "15m", "15 minutes":
		cronExpr = "*/15 * * * *"
	case "30m", "30 minutes":
		cronExpr = "*/30 * * * *"
	case "1h", "1 hour", "hourly":
		cronExpr = "@hourly"
	case "2h", "2 hours":
		cronExpr = "0 */2 * * *"
	case "4h", "4 hours":
		cronExpr = "0 */4 * * *"
	case "6h", "6 hours":
		cronExpr = "0 */6 * * *"
	case "12h", "12 hours":
		cronExpr = "0 */12 * * *"
	case "24h", "1 day", "daily":
		cronExpr = "@daily"
	case "weekly":
		cronExpr = "@weekly"
	case "monthly":
		cronExpr = "@monthly"
	default:
		return fmt.Errorf("unsupported interval: %s", interval)
	}

	return ps.Schedule(jobName, cronExpr, job)
}
