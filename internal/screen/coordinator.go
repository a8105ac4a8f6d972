// Package screen implements the Screen Coordinator: it holds the
// ordered list of registered screens, tracks which one is active, and
// switches the active screen in response to screen.command messages on
// the bus. Its channel-actor shape is modeled on the teacher's
// websocket Hub: a single goroutine owns all mutable state and is
// driven by a select loop over a command channel and a stop channel.
package screen

import (
	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/logger"
	"github.com/vesselframe/vesselframe/internal/pluginapi"
)

// Topic the coordinator subscribes to for switch commands, and the
// topic it publishes to whenever the active screen changes.
const (
	TopicCommand = "screen.command"
	TopicChanged = "screen.changed"
)

// Command values accepted on TopicCommand.
const (
	CommandNext     = "next"
	CommandPrevious = "previous"
)

// Command is the payload published on TopicCommand.
type Command struct {
	Action string
	Name   string // used by a future "goto named screen" action; empty for next/previous
}

// ChangedEvent is published on TopicChanged whenever the active screen
// changes.
type ChangedEvent struct {
	Name string
}

// Coordinator owns the ordered list of screens and the currently active
// index. With zero or one screen registered, next/previous are no-ops.
type Coordinator struct {
	bus     *bus.Bus
	log     zerolog.Logger
	screens []pluginapi.Screen
	active  int

	sub    *bus.Subscription
	stopCh chan struct{}
	done   chan struct{}
}

// New constructs a Coordinator over the given ordered screens. The
// first screen, if any, starts active.
func New(b *bus.Bus, screens []pluginapi.Screen) *Coordinator {
	return &Coordinator{
		bus:     b,
		log:     logger.Component("screen.coordinator"),
		screens: screens,
	}
}

// Start begins consuming screen.command messages in a background
// goroutine. Safe to call once; a second call is a no-op.
func (c *Coordinator) Start() {
	if c.sub != nil {
		return
	}
	c.sub = c.bus.Subscribe(TopicCommand)
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})

	go c.run()
}

// Stop halts the coordinator's processing loop.
func (c *Coordinator) Stop() {
	if c.sub == nil {
		return
	}
	close(c.stopCh)
	c.sub.Close()
	<-c.done
	c.sub = nil
}

func (c *Coordinator) run() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			return
		case raw, ok := <-c.sub.Messages():
			if !ok {
				return
			}
			cmd, ok := raw.(Command)
			if !ok {
				c.log.Warn().Interface("message", raw).Msg("dropping command of unexpected type")
				continue
			}
			c.handle(cmd)
		}
	}
}

func (c *Coordinator) handle(cmd Command) {
	switch cmd.Action {
	case CommandNext:
		c.advance(1)
	case CommandPrevious:
		c.advance(-1)
	default:
		c.log.Warn().Str("action", cmd.Action).Msg("unrecognized screen command")
	}
}

// advance moves the active index by delta screens, wrapping around the
// list. With fewer than two screens this is a no-op.
func (c *Coordinator) advance(delta int) {
	n := len(c.screens)
	if n < 2 {
		return
	}

	c.active = ((c.active+delta)%n + n) % n
	active := c.screens[c.active]

	c.log.Info().Str("screen", active.Name()).Msg("active screen changed")
	c.bus.Publish(TopicChanged, ChangedEvent{Name: active.Name()})
}

// Active returns the currently active screen, or nil if none are
// registered.
func (c *Coordinator) Active() pluginapi.Screen {
	if len(c.screens) == 0 {
		return nil
	}
	return c.screens[c.active]
}

// Screens returns the full ordered list of registered screens.
func (c *Coordinator) Screens() []pluginapi.Screen {
	return c.screens
}
