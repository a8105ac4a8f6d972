package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframe/vesselframe/internal/vessel"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	r, err := New(Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { r.Stop() })
	return r
}

func TestUpsertVesselInsertsOnFirstSight(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec, err := r.UpsertVessel(ctx, "123456789", vessel.DecodedMessage{
		MMSI: "123456789", HasPosition: true, Latitude: 1.5, Longitude: 2.5, ReceivedAt: now,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "123456789", rec.MMSI)
	assert.True(t, rec.HasPosition)
	assert.Equal(t, 1.5, rec.Latitude)
	assert.Equal(t, now, rec.FirstSight)
	assert.Equal(t, now, rec.LastSight)
	assert.False(t, rec.HasStaticData)
	assert.Equal(t, vessel.DefaultShipName, rec.ShipName)
	assert.Equal(t, vessel.DefaultCallSign, rec.CallSign)
	assert.Equal(t, vessel.DefaultShipType, rec.ShipType)
	assert.True(t, rec.StaticDataReceived.IsZero())
}

func TestUpsertVesselMergesDynamicAndStaticAcrossCalls(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	first := time.Now().UTC().Truncate(time.Second)
	second := first.Add(time.Minute)

	_, err := r.UpsertVessel(ctx, "111222333", vessel.DecodedMessage{
		MMSI: "111222333", HasPosition: true, Latitude: 10, Longitude: 20, ReceivedAt: first,
	}, false)
	require.NoError(t, err)

	rec, err := r.UpsertVessel(ctx, "111222333", vessel.DecodedMessage{
		MMSI: "111222333", HasStatic: true, ShipName: "Petrel", CallSign: "ABC123", ReceivedAt: second,
	}, true)
	require.NoError(t, err)

	assert.True(t, rec.HasPosition, "earlier dynamic data must survive a static-only update")
	assert.Equal(t, 10.0, rec.Latitude)
	assert.True(t, rec.HasStaticData)
	assert.Equal(t, "Petrel", rec.ShipName)
	assert.Equal(t, first, rec.FirstSight, "first sight must not move on later updates")
	assert.Equal(t, second, rec.LastSight)
	assert.Equal(t, second, rec.StaticDataReceived, "static_data_received is stamped on first transition")
}

func TestStaticDataReceivedStampedOnceAndPreserved(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	first := time.Now().UTC().Truncate(time.Second)
	second := first.Add(time.Minute)

	_, err := r.UpsertVessel(ctx, "444555666", vessel.DecodedMessage{
		MMSI: "444555666", HasStatic: true, ShipName: "Kestrel", ReceivedAt: first,
	}, true)
	require.NoError(t, err)

	rec, err := r.UpsertVessel(ctx, "444555666", vessel.DecodedMessage{
		MMSI: "444555666", HasStatic: true, ShipName: "Kestrel Renamed", ReceivedAt: second,
	}, true)
	require.NoError(t, err)

	assert.Equal(t, first, rec.StaticDataReceived, "stamp is preserved across later static updates")
}

func TestAllowStaticUpdateFalseSuppressesStaticFields(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec, err := r.UpsertVessel(ctx, "777888999", vessel.DecodedMessage{
		MMSI: "777888999", HasStatic: true, ShipName: "Ignored", ReceivedAt: now,
	}, false)
	require.NoError(t, err)

	assert.False(t, rec.HasStaticData, "allowStaticUpdate false must suppress even a static-typed message")
	assert.Equal(t, vessel.DefaultShipName, rec.ShipName)
}

func TestHasStaticDataNeverReverts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := r.UpsertVessel(ctx, "222333444", vessel.DecodedMessage{
		MMSI: "222333444", HasStatic: true, ShipName: "Osprey", ReceivedAt: now,
	}, true)
	require.NoError(t, err)

	rec, err := r.UpsertVessel(ctx, "222333444", vessel.DecodedMessage{
		MMSI: "222333444", HasPosition: true, Latitude: 5, Longitude: 5, ReceivedAt: now.Add(time.Minute),
	}, false)
	require.NoError(t, err)

	assert.True(t, rec.HasStaticData, "has_static_data must not clear once set")
	assert.Equal(t, "Osprey", rec.ShipName)
}

func TestGetVesselReturnsNilForUnknownMMSI(t *testing.T) {
	r := newTestRepository(t)
	rec, err := r.GetVessel(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetVesselStatsAggregatesCounts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := r.UpsertVessel(ctx, "100200300", vessel.DecodedMessage{MMSI: "100200300", HasPosition: true, ReceivedAt: now}, false)
	require.NoError(t, err)
	_, err = r.UpsertVessel(ctx, "400500600", vessel.DecodedMessage{MMSI: "400500600", HasStatic: true, ShipName: "X", ReceivedAt: now.Add(time.Second)}, true)
	require.NoError(t, err)

	stats, err := r.GetVesselStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVessels)
	assert.Equal(t, 1, stats.IdentifiedVessels)
	assert.Equal(t, 1, stats.UnknownVessels)
	assert.Equal(t, 50.0, stats.PercentIdentified)
	assert.Equal(t, now, stats.OldestFirstSight)
	assert.Equal(t, now.Add(time.Second), stats.NewestLastSight)
}
