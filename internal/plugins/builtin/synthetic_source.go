// Package builtin holds the plugins Vessel Frame ships out of the box:
// a synthetic AIS source for demos and tests, a raw-sentence decoder, and
// a console screen/renderer pair. Each registers itself into the global
// registry from init(), the same auto-registration idiom the platform's
// other plugin packages use.
package builtin

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/manager"
	"github.com/vesselframe/vesselframe/internal/pluginapi"
	"github.com/vesselframe/vesselframe/internal/plugins"
	"github.com/vesselframe/vesselframe/internal/vessel"
)

func init() {
	plugins.Global().Register(plugins.GroupSources, "synthetic", newSyntheticSource)
	plugins.Global().RegisterSchema("synthetic", pluginapi.Schema{
		Name: "synthetic",
		Fields: []pluginapi.SchemaField{
			{Key: "vessel_count", Type: "int", Default: 5, Description: "number of synthetic vessels to simulate"},
			{Key: "interval_ms", Type: "int", Default: 1000, Description: "milliseconds between simulated position reports"},
		},
	})
}

// SyntheticSource emits plausible-looking position and static reports for
// a fixed set of fabricated vessels, for demos and integration tests that
// don't have a real AIS receiver attached.
type SyntheticSource struct {
	pluginapi.BaseComponent
	bus       *bus.Bus
	log       zerolog.Logger
	scheduler pluginapi.Scheduler
	vessels   []string
	interval  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newSyntheticSource(ctx pluginapi.Context, cfg map[string]any) (any, error) {
	count := intField(cfg, "vessel_count", 5)
	intervalMs := intField(cfg, "interval_ms", 1000)

	mmsis := make([]string, count)
	for i := range mmsis {
		mmsis[i] = mmsiFor(i)
	}

	s := &SyntheticSource{
		bus:       ctx.Bus,
		log:       ctx.Log,
		scheduler: ctx.Scheduler,
		vessels:   mmsis,
		interval:  time.Duration(intervalMs) * time.Millisecond,
	}
	s.Named = "synthetic"
	return s, nil
}

func mmsiFor(i int) string {
	return "99900000" + string(rune('0'+i%10))
}

// Start begins publishing simulated decoded messages onto ais.decoded.
func (s *SyntheticSource) Start() error {
	if s.stopCh != nil {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	if s.scheduler != nil {
		if err := s.scheduler.Schedule("heartbeat", "*/5 * * * *", s.logHeartbeat); err != nil {
			s.log.Warn().Err(err).Msg("failed to schedule synthetic source heartbeat")
		}
	}

	return s.BaseComponent.Start()
}

// Stop halts the simulation loop.
func (s *SyntheticSource) Stop() error {
	if s.stopCh == nil {
		return s.BaseComponent.Stop()
	}
	close(s.stopCh)
	s.wg.Wait()
	s.stopCh = nil
	return s.BaseComponent.Stop()
}

// logHeartbeat is a low-frequency scheduled job, distinct from the
// simulation loop's own ticker, that confirms the source is still alive
// even when no operator is watching the live feed.
func (s *SyntheticSource) logHeartbeat() {
	s.log.Info().Int("vessel_count", len(s.vessels)).Msg("synthetic source heartbeat")
}

func (s *SyntheticSource) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	identified := make(map[string]bool, len(s.vessels))

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, mmsi := range s.vessels {
				now := time.Now()
				s.bus.Publish(manager.TopicDecoded, vessel.DecodedMessage{
					MMSI:        mmsi,
					Type:        vessel.MessageTypePositionReport,
					HasPosition: true,
					Latitude:    rng.Float64()*180 - 90,
					Longitude:   rng.Float64()*360 - 180,
					SOG:         rng.Float64() * 25,
					COG:         rng.Float64() * 360,
					ReceivedAt:  now,
				})

				if !identified[mmsi] {
					identified[mmsi] = true
					s.bus.Publish(manager.TopicDecoded, vessel.DecodedMessage{
						MMSI:       mmsi,
						Type:       vessel.MessageTypeStaticData,
						HasStatic:  true,
						ShipName:   "Synthetic " + mmsi,
						CallSign:   "SIM" + mmsi[len(mmsi)-3:],
						ReceivedAt: now,
					})
				}
			}
		}
	}
}

func intField(cfg map[string]any, key string, def int) int {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
