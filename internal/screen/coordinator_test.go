package screen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/pluginapi"
)

type fakeScreen struct {
	pluginapi.BaseComponent
	name string
}

func newFakeScreen(name string) *fakeScreen {
	s := &fakeScreen{name: name}
	s.Named = name
	return s
}

func (s *fakeScreen) Render(pluginapi.Canvas) error { return nil }

func TestCoordinatorStartsOnFirstScreen(t *testing.T) {
	b := bus.New()
	c := New(b, []pluginapi.Screen{newFakeScreen("alpha"), newFakeScreen("beta")})
	require.NotNil(t, c.Active())
	assert.Equal(t, "alpha", c.Active().Name())
}

func TestCoordinatorAdvancesNextWithWraparound(t *testing.T) {
	b := bus.New()
	c := New(b, []pluginapi.Screen{newFakeScreen("alpha"), newFakeScreen("beta")})
	c.Start()
	defer c.Stop()

	sub := b.Subscribe(TopicChanged)
	defer sub.Close()

	b.Publish(TopicCommand, Command{Action: CommandNext})
	select {
	case evt := <-sub.Messages():
		assert.Equal(t, "beta", evt.(ChangedEvent).Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for screen.changed")
	}

	b.Publish(TopicCommand, Command{Action: CommandNext})
	select {
	case evt := <-sub.Messages():
		assert.Equal(t, "alpha", evt.(ChangedEvent).Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wraparound screen.changed")
	}
}

func TestCoordinatorPreviousWrapsBackward(t *testing.T) {
	b := bus.New()
	c := New(b, []pluginapi.Screen{newFakeScreen("alpha"), newFakeScreen("beta")})
	c.Start()
	defer c.Stop()

	sub := b.Subscribe(TopicChanged)
	defer sub.Close()

	b.Publish(TopicCommand, Command{Action: CommandPrevious})
	select {
	case evt := <-sub.Messages():
		assert.Equal(t, "beta", evt.(ChangedEvent).Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for screen.changed")
	}
}

func TestCoordinatorSingleScreenIsNoOp(t *testing.T) {
	b := bus.New()
	c := New(b, []pluginapi.Screen{newFakeScreen("only")})
	c.Start()
	defer c.Stop()

	sub := b.Subscribe(TopicChanged)
	defer sub.Close()

	b.Publish(TopicCommand, Command{Action: CommandNext})

	select {
	case <-sub.Messages():
		t.Fatal("single-screen coordinator should not publish a change")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, "only", c.Active().Name())
}

func TestCoordinatorEmptyScreenListHasNoActive(t *testing.T) {
	b := bus.New()
	c := New(b, nil)
	assert.Nil(t, c.Active())
}
