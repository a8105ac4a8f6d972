// Package manager implements the Vessel Manager: the core algorithm that
// consumes decoded AIS messages off the bus, maintains the in-memory set
// of currently tracked vessels, persists them through the Vessel
// Repository, and emits zone-transition and lifecycle events.
//
// Its Start/Stop/in-memory-map shape is modeled directly on the
// teacher's ConnectionTracker: a background goroutine owns a
// map[string]*T behind a mutex, driven by a select loop with a stop
// channel, exposing read-only snapshot queries to callers. The
// difference from that tracker is the loop's trigger: ConnectionTracker
// wakes on a ticker, the Vessel Manager wakes on a bus subscription
// receive.
package manager

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/logger"
	"github.com/vesselframe/vesselframe/internal/vessel"
)

// Topic names the manager publishes and subscribes to.
const (
	TopicDecoded          = "ais.decoded"
	TopicVesselFirstSeen  = "vessel.first_seen"
	TopicVesselAppeared   = "vessel.appeared"
	TopicVesselUpdated    = "vessel.updated"
	TopicVesselIdentified = "vessel.identified"
	TopicZoneEntered      = "vessel.zone_entered"
	TopicZoneExited       = "vessel.zone_exited"
	TopicZoneMoved        = "vessel.zone_moved"
)

// sarAircraftPrefix marks an MMSI as belonging to a search-and-rescue
// aircraft rather than a vessel; these are filtered at the door.
const sarAircraftPrefix = "111"

// isAcceptableMMSI reports whether mmsi should be tracked: exactly nine
// digits, and not a search-and-rescue aircraft.
func isAcceptableMMSI(mmsi string) bool {
	if len(mmsi) != 9 {
		return false
	}
	for _, c := range mmsi {
		if c < '0' || c > '9' {
			return false
		}
	}
	return !strings.HasPrefix(mmsi, sarAircraftPrefix)
}

// Repository is the persistence dependency the manager writes through to
// on every accepted message.
type Repository interface {
	UpsertVessel(ctx context.Context, mmsi string, msg vessel.DecodedMessage, allowStaticUpdate bool) (*vessel.Record, error)
	GetVessel(ctx context.Context, mmsi string) (*vessel.Record, error)
}

// Config configures the manager's acceptance and eviction behavior.
type Config struct {
	// MaxTracked bounds the number of vessels held in memory. When
	// exceeded, the least-recently-seen vessel is evicted. Zero means
	// unbounded.
	MaxTracked int
	// Zones are the geofences checked on every position update.
	Zones []vessel.Zone
}

// Manager is the running Vessel Manager.
type Manager struct {
	bus  *bus.Bus
	repo Repository
	cfg  Config
	log  zerolog.Logger

	mu      sync.RWMutex
	vessels map[string]*vessel.Record
	inZones map[string]string // mmsi -> current zone name, "" if in none

	sub    *bus.Subscription
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Manager. Call Start to begin consuming messages.
func New(b *bus.Bus, repo Repository, cfg Config) *Manager {
	return &Manager{
		bus:     b,
		repo:    repo,
		cfg:     cfg,
		log:     logger.Component("manager"),
		vessels: make(map[string]*vessel.Record),
		inZones: make(map[string]string),
	}
}

// Start subscribes to decoded messages and begins the manager's
// processing loop in a background goroutine. Safe to call once; a
// second call is a no-op.
func (m *Manager) Start() {
	if m.sub != nil {
		return
	}

	m.sub = m.bus.Subscribe(TopicDecoded)
	m.stopCh = make(chan struct{})

	m.wg.Add(1)
	go m.run()

	m.log.Info().Msg("vessel manager started")
}

// Stop halts the processing loop and releases the bus subscription. Safe
// to call more than once.
func (m *Manager) Stop() {
	if m.sub == nil {
		return
	}
	close(m.stopCh)
	m.sub.Close()
	m.wg.Wait()
	m.sub = nil
	m.log.Info().Msg("vessel manager stopped")
}

func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case raw, ok := <-m.sub.Messages():
			if !ok {
				return
			}
			msg, ok := raw.(vessel.DecodedMessage)
			if !ok {
				m.log.Warn().Interface("message", raw).Msg("dropping message of unexpected type")
				continue
			}
			m.handle(msg)
		}
	}
}

// handle runs the full per-message algorithm: acceptance filter,
// new-vessel baseline lookup, persistence, in-memory update,
// zone-transition detection, and event publication. Any internal
// failure is logged and the loop continues; nothing here propagates an
// error to the caller.
func (m *Manager) handle(msg vessel.DecodedMessage) {
	if msg.MMSI == "" {
		m.log.Warn().Msg("dropping message with empty mmsi")
		return
	}
	if !isAcceptableMMSI(msg.MMSI) {
		m.log.Warn().Str("mmsi", msg.MMSI).Msg("dropping message with unacceptable mmsi")
		return
	}
	if !msg.HasPosition && !msg.HasStatic {
		return
	}

	ctx := context.Background()

	m.mu.RLock()
	tracked, wasTracked := m.vessels[msg.MMSI]
	m.mu.RUnlock()

	isNewVessel := !wasTracked
	wasIdentified := wasTracked && tracked.HasStaticData

	// A vessel absent from memory may still be known to the repository
	// across a restart or eviction; that baseline decides first_seen vs
	// appeared and whether it was already identified before this message.
	var baseline *vessel.Record
	if isNewVessel {
		var err error
		baseline, err = m.repo.GetVessel(ctx, msg.MMSI)
		if err != nil {
			m.log.Error().Err(err).Str("mmsi", msg.MMSI).Msg("failed to look up vessel baseline")
			return
		}
		if baseline == nil {
			m.bus.Publish(TopicVesselFirstSeen, FirstSeenEvent{MMSI: msg.MMSI, HasStaticData: msg.HasStatic})
		} else {
			wasIdentified = baseline.HasStaticData
			m.bus.Publish(TopicVesselAppeared, AppearedEvent{MMSI: msg.MMSI, Record: *baseline, Known: true})
		}
	}

	allowStaticUpdate := msg.Type == vessel.MessageTypeStaticData
	rec, err := m.repo.UpsertVessel(ctx, msg.MMSI, msg, allowStaticUpdate)
	if err != nil {
		m.log.Error().Err(err).Str("mmsi", msg.MMSI).Msg("failed to persist vessel")
		return
	}

	m.mu.Lock()
	m.vessels[msg.MMSI] = rec
	m.evictIfNeededLocked()
	m.mu.Unlock()

	if !wasIdentified && rec.HasStaticData {
		m.bus.Publish(TopicVesselIdentified, *rec)
	}

	if msg.HasPosition {
		m.checkZoneTransitions(msg.MMSI, rec.Latitude, rec.Longitude)
	}

	m.bus.Publish(TopicVesselUpdated, *rec)
}

// evictIfNeededLocked drops the least-recently-seen vessel once the
// tracked set exceeds MaxTracked. Callers must hold m.mu.
func (m *Manager) evictIfNeededLocked() {
	if m.cfg.MaxTracked <= 0 || len(m.vessels) <= m.cfg.MaxTracked {
		return
	}

	var oldestMMSI string
	for mmsi, rec := range m.vessels {
		if oldestMMSI == "" || rec.LastSight.Before(m.vessels[oldestMMSI].LastSight) {
			oldestMMSI = mmsi
		}
	}
	if oldestMMSI != "" {
		delete(m.vessels, oldestMMSI)
		delete(m.inZones, oldestMMSI)
	}
}

// checkZoneTransitions determines a vessel's single current zone (the
// first configured zone whose radius contains the position) and
// compares it against the previously recorded zone. Exactly one event
// is published per genuine change: none -> zone is an entry, zone ->
// none is an exit, zoneA -> zoneB is a move naming both. No event is
// published when the zone is unchanged.
func (m *Manager) checkZoneTransitions(mmsi string, lat, lon float64) {
	if len(m.cfg.Zones) == 0 {
		return
	}

	var curr string
	for _, z := range m.cfg.Zones {
		if z.Contains(lat, lon) {
			curr = z.Name
			break
		}
	}

	m.mu.Lock()
	prev := m.inZones[mmsi]
	m.inZones[mmsi] = curr
	m.mu.Unlock()

	switch {
	case prev == curr:
		return
	case prev == "":
		m.bus.Publish(TopicZoneEntered, ZoneEvent{MMSI: mmsi, Zone: curr})
	case curr == "":
		m.bus.Publish(TopicZoneExited, ZoneEvent{MMSI: mmsi, Zone: prev})
	default:
		m.bus.Publish(TopicZoneMoved, ZoneEvent{MMSI: mmsi, Zone: curr, PreviousZone: prev})
	}
}

// ZoneEvent is the payload published on zone transition topics.
// PreviousZone is only set on TopicZoneMoved.
type ZoneEvent struct {
	MMSI         string
	Zone         string
	PreviousZone string
}

// FirstSeenEvent is published the first time an MMSI with no prior
// repository record is observed.
type FirstSeenEvent struct {
	MMSI          string
	HasStaticData bool
}

// AppearedEvent is published when an MMSI absent from memory is found
// already stored in the repository: a returning vessel rather than a
// genuinely new one.
type AppearedEvent struct {
	MMSI   string
	Record vessel.Record
	Known  bool
}

// GetVessel returns a snapshot of the tracked record for mmsi, or nil if
// it is not currently tracked.
func (m *Manager) GetVessel(mmsi string) *vessel.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.vessels[mmsi]
	if !ok {
		return nil
	}
	copyRec := *rec
	return &copyRec
}

// GetAllVessels returns a snapshot of every currently tracked vessel,
// sorted by MMSI for stable output.
func (m *Manager) GetAllVessels() []vessel.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]vessel.Record, 0, len(m.vessels))
	for _, rec := range m.vessels {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

// GetIdentifiedVessels returns every tracked vessel whose static data has
// been received.
func (m *Manager) GetIdentifiedVessels() []vessel.Record {
	return filterVessels(m.GetAllVessels(), func(r vessel.Record) bool { return r.HasStaticData })
}

// GetUnknownVessels returns every tracked vessel whose static data has
// not yet been received.
func (m *Manager) GetUnknownVessels() []vessel.Record {
	return filterVessels(m.GetAllVessels(), func(r vessel.Record) bool { return !r.HasStaticData })
}

// GetVesselsInZone returns every tracked vessel currently inside the
// named zone.
func (m *Manager) GetVesselsInZone(zoneName string) []vessel.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]vessel.Record, 0)
	for mmsi, zone := range m.inZones {
		if zone == zoneName {
			if rec, ok := m.vessels[mmsi]; ok {
				out = append(out, *rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

// GetRecentVessels returns the n most recently seen vessels, newest
// first.
func (m *Manager) GetRecentVessels(n int) []vessel.Record {
	all := m.GetAllVessels()
	sort.Slice(all, func(i, j int) bool { return all[i].LastSight.After(all[j].LastSight) })
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

func filterVessels(in []vessel.Record, keep func(vessel.Record) bool) []vessel.Record {
	out := make([]vessel.Record, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
