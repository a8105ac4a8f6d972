package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeDelivers(t *testing.T) {
	b := New()
	sub := b.Subscribe("vessel.updated")
	defer sub.Close()

	b.Publish("vessel.updated", "hello")

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishWithNoSubscribersIsNoOp(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Publish("nobody.listening", 1)
	})
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := New()
	sub := b.Subscribe("ints")
	defer sub.Close()

	for i := 0; i < 1500; i++ {
		b.Publish("ints", i)
	}

	var got []int
	for {
		select {
		case msg := <-sub.Messages():
			got = append(got, msg.(int))
		default:
			goto drained
		}
	}
drained:

	require.Len(t, got, 1000)
	assert.Equal(t, 500, got[0])
	assert.Equal(t, 1499, got[len(got)-1])
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe("topic")
	sub.Close()

	b.Publish("topic", "should not arrive")

	_, ok := <-sub.Messages()
	assert.False(t, ok, "channel should be closed after Close")
}

func TestShutdownClosesAllSubscriptions(t *testing.T) {
	b := New()
	sub1 := b.Subscribe("a")
	sub2 := b.Subscribe("b")

	b.Shutdown()

	_, ok1 := <-sub1.Messages()
	_, ok2 := <-sub2.Messages()
	assert.False(t, ok1)
	assert.False(t, ok2)

	assert.NotPanics(t, func() {
		b.Publish("a", "ignored")
	})
}

func TestIndependentTopicsDoNotCrossDeliver(t *testing.T) {
	b := New()
	subA := b.Subscribe("a")
	subB := b.Subscribe("b")
	defer subA.Close()
	defer subB.Close()

	b.Publish("a", "only-a")

	select {
	case msg := <-subA.Messages():
		assert.Equal(t, "only-a", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message on topic a")
	}

	select {
	case <-subB.Messages():
		t.Fatal("topic b should not have received a message")
	case <-time.After(50 * time.Millisecond):
	}
}
