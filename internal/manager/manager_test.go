package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/vessel"
)

// fakeRepository is an in-memory stand-in for the Vessel Repository,
// applying the same merge semantics the real sqlite-backed repository
// does, so manager tests don't need a database.
type fakeRepository struct {
	mu      sync.Mutex
	vessels map[string]*vessel.Record
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{vessels: make(map[string]*vessel.Record)}
}

func (f *fakeRepository) UpsertVessel(_ context.Context, mmsi string, msg vessel.DecodedMessage, allowStaticUpdate bool) (*vessel.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.vessels[mmsi]
	if !ok {
		rec = &vessel.Record{
			MMSI:       mmsi,
			ShipName:   vessel.DefaultShipName,
			CallSign:   vessel.DefaultCallSign,
			ShipType:   vessel.DefaultShipType,
			FirstSight: msg.ReceivedAt,
		}
		f.vessels[mmsi] = rec
	}
	rec.LastSight = msg.ReceivedAt

	if msg.HasPosition {
		rec.ApplyDynamic(msg)
	}
	if allowStaticUpdate {
		rec.ApplyStatic(msg)
		if rec.StaticDataReceived.IsZero() {
			rec.StaticDataReceived = msg.ReceivedAt
		}
	}

	copyRec := *rec
	return &copyRec, nil
}

func (f *fakeRepository) GetVessel(_ context.Context, mmsi string) (*vessel.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.vessels[mmsi]
	if !ok {
		return nil, nil
	}
	copyRec := *rec
	return &copyRec, nil
}

func waitForSubscribers(b *bus.Bus, topic string, timeout time.Duration) {
	// test-only helper: Start() subscribes asynchronously-free (Subscribe
	// is synchronous), so this just gives the manager goroutine a tick
	// to reach its select loop before the test publishes.
	time.Sleep(10 * time.Millisecond)
}

func TestManagerAcceptsPositionReport(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	sub := b.Subscribe(TopicVesselUpdated)
	defer sub.Close()

	b.Publish(TopicDecoded, vessel.DecodedMessage{
		MMSI: "123456789", Type: vessel.MessageTypePositionReport,
		HasPosition: true, Latitude: 1.0, Longitude: 2.0, ReceivedAt: time.Now(),
	})

	select {
	case msg := <-sub.Messages():
		rec := msg.(vessel.Record)
		assert.Equal(t, "123456789", rec.MMSI)
		assert.True(t, rec.HasPosition)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for vessel.updated")
	}

	tracked := m.GetVessel("123456789")
	require.NotNil(t, tracked)
	assert.Equal(t, 1.0, tracked.Latitude)
}

func TestManagerIgnoresMessageWithoutMMSI(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	b.Publish(TopicDecoded, vessel.DecodedMessage{HasPosition: true, ReceivedAt: time.Now()})
	waitForSubscribers(b, TopicDecoded, 0)

	assert.Empty(t, m.GetAllVessels())
}

// S3: an MMSI beginning with the SAR-aircraft prefix "111" is dropped
// entirely — no bus output, no repository row.
func TestManagerRejectsSARAircraftMMSI(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	sub := b.Subscribe(TopicVesselUpdated)
	defer sub.Close()

	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "111234567", HasPosition: true, ReceivedAt: time.Now()})

	select {
	case <-sub.Messages():
		t.Fatal("a SAR-aircraft mmsi must not produce a vessel.updated event")
	case <-time.After(100 * time.Millisecond):
	}

	assert.Nil(t, m.GetVessel("111234567"))
	rec, err := repo.GetVessel(context.Background(), "111234567")
	require.NoError(t, err)
	assert.Nil(t, rec, "a rejected mmsi must never reach the repository")
}

// S4: an MMSI that is not exactly nine digits is dropped.
func TestManagerRejectsNonNineDigitMMSI(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	sub := b.Subscribe(TopicVesselUpdated)
	defer sub.Close()

	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "12345", HasPosition: true, ReceivedAt: time.Now()})

	select {
	case <-sub.Messages():
		t.Fatal("a non-nine-digit mmsi must not produce a vessel.updated event")
	case <-time.After(100 * time.Millisecond):
	}

	assert.Nil(t, m.GetVessel("12345"))
}

// S1: a position-only first sighting of a brand-new mmsi publishes
// vessel.first_seen before vessel.updated, and the updated record
// carries the "Unknown" name default.
func TestManagerFirstSeenPrecedesUpdatedForNewVessel(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	firstSeen := b.Subscribe(TopicVesselFirstSeen)
	defer firstSeen.Close()
	updated := b.Subscribe(TopicVesselUpdated)
	defer updated.Close()

	b.Publish(TopicDecoded, vessel.DecodedMessage{
		MMSI: "234567890", HasPosition: true, Latitude: 10, Longitude: 20, ReceivedAt: time.Now(),
	})

	select {
	case msg := <-firstSeen.Messages():
		evt := msg.(FirstSeenEvent)
		assert.Equal(t, "234567890", evt.MMSI)
		assert.False(t, evt.HasStaticData)
	case <-time.After(time.Second):
		t.Fatal("expected vessel.first_seen for a brand-new mmsi")
	}

	select {
	case msg := <-updated.Messages():
		rec := msg.(vessel.Record)
		assert.Equal(t, vessel.DefaultShipName, rec.ShipName)
		assert.False(t, rec.HasStaticData)
	case <-time.After(time.Second):
		t.Fatal("expected vessel.updated to follow vessel.first_seen")
	}
}

// S2: static data arriving for an already-tracked vessel publishes
// vessel.identified once, and the updated record reflects the new name.
// The static message carries no position, so no zone event should fire.
func TestManagerIdentifiedOnStaticArrival(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	zone := vessel.Zone{Name: "harbour", Lat: 53.40, Lon: -3.00, RadiusKm: 1.0}
	m := New(b, repo, Config{Zones: []vessel.Zone{zone}})
	m.Start()
	defer m.Stop()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{
		MMSI: "345678901", HasPosition: true, Latitude: 53.40, Longitude: -3.00, ReceivedAt: now,
	})
	waitForSubscribers(b, TopicDecoded, 0)

	identified := b.Subscribe(TopicVesselIdentified)
	defer identified.Close()
	zoneEntered := b.Subscribe(TopicZoneEntered)
	defer zoneEntered.Close()
	updated := b.Subscribe(TopicVesselUpdated)
	defer updated.Close()

	b.Publish(TopicDecoded, vessel.DecodedMessage{
		MMSI: "345678901", Type: vessel.MessageTypeStaticData,
		HasStatic: true, ShipName: "ATLANTIC", ReceivedAt: now.Add(time.Second),
	})

	select {
	case msg := <-identified.Messages():
		assert.Equal(t, "ATLANTIC", msg.(vessel.Record).ShipName)
	case <-time.After(time.Second):
		t.Fatal("expected vessel.identified on first static arrival")
	}

	select {
	case msg := <-updated.Messages():
		assert.Equal(t, "ATLANTIC", msg.(vessel.Record).ShipName)
		assert.True(t, msg.(vessel.Record).HasStaticData)
	case <-time.After(time.Second):
		t.Fatal("expected vessel.updated to follow vessel.identified")
	}

	select {
	case <-zoneEntered.Messages():
		t.Fatal("a static-only message carries no position; it must not trigger a zone event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManagerPublishesIdentifiedOnceOnly(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	sub := b.Subscribe(TopicVesselIdentified)
	defer sub.Close()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "456789012", Type: vessel.MessageTypeStaticData, HasStatic: true, ShipName: "Gull", ReceivedAt: now})

	select {
	case <-sub.Messages():
	case <-time.After(time.Second):
		t.Fatal("expected identified event on first static message")
	}

	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "456789012", Type: vessel.MessageTypeStaticData, HasStatic: true, ShipName: "Gull II", ReceivedAt: now.Add(time.Second)})

	select {
	case <-sub.Messages():
		t.Fatal("should not re-publish identified for an already-identified vessel")
	case <-time.After(100 * time.Millisecond):
	}
}

// S5: entering a single configured zone emits zone_entered; moving well
// outside it emits zone_exited. Because there is only one zone
// configured, zone_moved must never fire.
func TestManagerZoneTransitionsSingleZone(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	zone := vessel.Zone{Name: "harbour", Lat: 53.40, Lon: -3.00, RadiusKm: 1.0}
	m := New(b, repo, Config{Zones: []vessel.Zone{zone}})
	m.Start()
	defer m.Stop()

	entered := b.Subscribe(TopicZoneEntered)
	defer entered.Close()
	exited := b.Subscribe(TopicZoneExited)
	defer exited.Close()
	moved := b.Subscribe(TopicZoneMoved)
	defer moved.Close()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "567890123", HasPosition: true, Latitude: 53.40, Longitude: -3.00, ReceivedAt: now})

	select {
	case evt := <-entered.Messages():
		assert.Equal(t, "567890123", evt.(ZoneEvent).MMSI)
		assert.Equal(t, "harbour", evt.(ZoneEvent).Zone)
	case <-time.After(time.Second):
		t.Fatal("expected zone entered event")
	}

	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "567890123", HasPosition: true, Latitude: 10, Longitude: 10, ReceivedAt: now.Add(time.Second)})

	select {
	case evt := <-exited.Messages():
		assert.Equal(t, "567890123", evt.(ZoneEvent).MMSI)
		assert.Equal(t, "harbour", evt.(ZoneEvent).Zone)
	case <-time.After(time.Second):
		t.Fatal("expected zone exited event")
	}

	select {
	case <-moved.Messages():
		t.Fatal("a single-zone config must never produce zone_moved")
	case <-time.After(100 * time.Millisecond):
	}
}

// Moving directly from one configured zone into a different one must
// publish exactly zone_moved, naming both zones, and neither
// zone_entered nor zone_exited.
func TestManagerZoneMovedBetweenTwoZones(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	zoneA := vessel.Zone{Name: "harbour", Lat: 53.40, Lon: -3.00, RadiusKm: 1.0}
	zoneB := vessel.Zone{Name: "anchorage", Lat: 10.0, Lon: 10.0, RadiusKm: 1.0}
	m := New(b, repo, Config{Zones: []vessel.Zone{zoneA, zoneB}})
	m.Start()
	defer m.Stop()

	entered := b.Subscribe(TopicZoneEntered)
	defer entered.Close()
	exited := b.Subscribe(TopicZoneExited)
	defer exited.Close()
	moved := b.Subscribe(TopicZoneMoved)
	defer moved.Close()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "678901234", HasPosition: true, Latitude: 53.40, Longitude: -3.00, ReceivedAt: now})
	select {
	case <-entered.Messages():
	case <-time.After(time.Second):
		t.Fatal("expected initial zone entered event")
	}

	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "678901234", HasPosition: true, Latitude: 10.0, Longitude: 10.0, ReceivedAt: now.Add(time.Second)})

	select {
	case evt := <-moved.Messages():
		ze := evt.(ZoneEvent)
		assert.Equal(t, "anchorage", ze.Zone)
		assert.Equal(t, "harbour", ze.PreviousZone)
	case <-time.After(time.Second):
		t.Fatal("expected zone_moved naming both zones")
	}

	select {
	case <-entered.Messages():
		t.Fatal("a zone-to-zone transition must not also fire zone_entered")
	case <-exited.Messages():
		t.Fatal("a zone-to-zone transition must not also fire zone_exited")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManagerEvictsLeastRecentlySeen(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{MaxTracked: 2})
	m.Start()
	defer m.Stop()

	sub := b.Subscribe(TopicVesselUpdated)
	defer sub.Close()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "789012345", HasPosition: true, ReceivedAt: now})
	<-sub.Messages()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "890123456", HasPosition: true, ReceivedAt: now.Add(time.Second)})
	<-sub.Messages()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "901234567", HasPosition: true, ReceivedAt: now.Add(2 * time.Second)})
	<-sub.Messages()

	all := m.GetAllVessels()
	assert.Len(t, all, 2)
	assert.Nil(t, m.GetVessel("789012345"), "oldest vessel should have been evicted")
	assert.NotNil(t, m.GetVessel("901234567"))
}

// S6: a vessel evicted from memory but still present in the repository
// re-appears as vessel.appeared, not vessel.first_seen.
func TestManagerAppearedOnReturningEvictedVessel(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{MaxTracked: 2})
	m.Start()
	defer m.Stop()

	updated := b.Subscribe(TopicVesselUpdated)
	defer updated.Close()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "123123123", HasPosition: true, ReceivedAt: now})
	<-updated.Messages()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "234234234", HasPosition: true, ReceivedAt: now.Add(time.Second)})
	<-updated.Messages()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "345345345", HasPosition: true, ReceivedAt: now.Add(2 * time.Second)})
	<-updated.Messages()

	require.Nil(t, m.GetVessel("123123123"), "first vessel must have been evicted to make room")

	appeared := b.Subscribe(TopicVesselAppeared)
	defer appeared.Close()
	firstSeen := b.Subscribe(TopicVesselFirstSeen)
	defer firstSeen.Close()

	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "123123123", HasPosition: true, ReceivedAt: now.Add(3 * time.Second)})

	select {
	case msg := <-appeared.Messages():
		assert.Equal(t, "123123123", msg.(AppearedEvent).MMSI)
		assert.True(t, msg.(AppearedEvent).Known)
	case <-time.After(time.Second):
		t.Fatal("expected vessel.appeared for a returning, repository-known vessel")
	}

	select {
	case <-firstSeen.Messages():
		t.Fatal("a returning vessel must not publish vessel.first_seen")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGetRecentVesselsOrdersNewestFirst(t *testing.T) {
	b := bus.New()
	repo := newFakeRepository()
	m := New(b, repo, Config{})
	m.Start()
	defer m.Stop()

	sub := b.Subscribe(TopicVesselUpdated)
	defer sub.Close()

	now := time.Now()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "211222233", HasPosition: true, ReceivedAt: now})
	<-sub.Messages()
	b.Publish(TopicDecoded, vessel.DecodedMessage{MMSI: "222333344", HasPosition: true, ReceivedAt: now.Add(time.Second)})
	<-sub.Messages()

	recent := m.GetRecentVessels(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "222333344", recent[0].MMSI)
}
