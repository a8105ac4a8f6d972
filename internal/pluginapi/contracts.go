// Package pluginapi defines the interfaces Vessel Frame's plugins
// implement and the context object they are constructed with. The
// registry and runtime in internal/plugins depend only on this package;
// concrete plugins live outside it and are wired in at startup.
package pluginapi

import (
	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/config"
)

// Context is everything a plugin factory needs to construct a plugin
// instance: the shared bus to publish/subscribe on, a component-scoped
// logger, read-only access to the loaded configuration, and a scheduler
// for any periodic housekeeping the plugin needs that doesn't warrant
// its own ticker goroutine.
type Context struct {
	Bus       *bus.Bus
	Log       zerolog.Logger
	Config    *config.Config
	Scheduler Scheduler
}

// Scheduler lets a plugin register cron-syntax periodic jobs without
// depending on internal/plugins directly (that package already depends
// on pluginapi, so the reverse import would cycle). *plugins.PluginScheduler
// satisfies this interface.
type Scheduler interface {
	Schedule(jobName string, cronExpr string, job func()) error
}

// Lifecycle is the common Start/Stop contract shared by sources,
// processors, controllers, and screens. Implementations must treat
// repeated Start or Stop calls as no-ops rather than errors.
type Lifecycle interface {
	Start() error
	Stop() error
}

// Source produces DecodedMessage-shaped events onto the bus: a UDP
// listener, a serial port reader, a file tailer, or a synthetic generator
// for testing. A source's Start should begin publishing asynchronously
// and return promptly; Stop should halt publishing and release any
// underlying resource (socket, file handle, goroutine).
type Source interface {
	Lifecycle
	Name() string
}

// Processor transforms or enriches messages already on the bus — for
// instance, decoding raw AIS sentences into vessel.DecodedMessage values,
// or filtering messages by geography before they reach the manager.
type Processor interface {
	Lifecycle
	Name() string
}

// Controller reacts to vessel or zone events to drive external
// side effects: sounding an alert, toggling a relay, writing to a log
// file. Controllers never publish back onto the topics they subscribe
// to, to avoid feedback loops.
type Controller interface {
	Lifecycle
	Name() string
}

// Screen is one page of the device's display. Exactly one Screen is
// active at a time, managed by the screen coordinator; Render is called
// by whatever render strategy the screen is paired with.
type Screen interface {
	Lifecycle
	Name() string
	Render(Canvas) error
}

// Canvas is the minimal drawing surface a Screen renders onto. Concrete
// renderers (framebuffer, terminal, no-op) implement this to let the
// same screen code target different displays.
type Canvas interface {
	Clear()
	Flush() error
	Bounds() (width, height int)
}

// Renderer owns a Canvas and the hardware/terminal it represents. It is
// distinct from Screen: a Renderer is the output device, a Screen is a
// page of content drawn onto whatever Renderer is active.
type Renderer interface {
	Lifecycle
	Canvas() Canvas
	MinRenderInterval() int64 // nanoseconds; see render strategy min_interval
}

// Schema describes a plugin's configuration shape for documentation and
// validation purposes. Plugins that take no configuration may omit it.
type Schema struct {
	Name   string
	Fields []SchemaField
}

// SchemaField describes one configuration key a plugin accepts.
type SchemaField struct {
	Key         string
	Type        string
	Default     any
	Description string
}

// BaseComponent is embedded by plugins that want idempotent no-op
// defaults for Start/Stop rather than implementing both from scratch.
// Plugins override whichever of the two they actually need.
type BaseComponent struct {
	Named   string
	started bool
}

// Name returns the component's registered name.
func (b *BaseComponent) Name() string { return b.Named }

// Start marks the component started. Safe to call more than once.
func (b *BaseComponent) Start() error {
	b.started = true
	return nil
}

// Stop marks the component stopped. Safe to call more than once, and
// safe to call without a preceding Start.
func (b *BaseComponent) Stop() error {
	b.started = false
	return nil
}

// Running reports whether Start has been called more recently than Stop.
func (b *BaseComponent) Running() bool { return b.started }
