package builtin

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/manager"
	"github.com/vesselframe/vesselframe/internal/pluginapi"
	"github.com/vesselframe/vesselframe/internal/plugins"
	"github.com/vesselframe/vesselframe/internal/vessel"
)

// TopicRawSentence is the bus topic raw, undecoded AIS sentences arrive
// on before this processor turns them into vessel.DecodedMessage values.
const TopicRawSentence = "ais.raw"

func init() {
	plugins.Global().Register(plugins.GroupProcessors, "sentence", newSentenceProcessor)
}

// SentenceProcessor decodes pipe-delimited sentence records into
// vessel.DecodedMessage values and republishes them on ais.decoded. Real
// AIVDM/AIVDO bit-field decoding is out of scope here: this is a simple
// text format of this package (the bundled synthetic source publishes
// decoded messages directly and does not use it), and a real deployment
// swaps this processor for one backed by an AIS receiver.
//
// Position record:  "POS|<mmsi>|<lat>|<lon>|<sog>|<cog>"
// Static record:     "STATIC|<mmsi>|<name>|<callsign>|<destination>"
type SentenceProcessor struct {
	pluginapi.BaseComponent
	bus *bus.Bus
	log zerolog.Logger

	sub    *bus.Subscription
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newSentenceProcessor(ctx pluginapi.Context, _ map[string]any) (any, error) {
	p := &SentenceProcessor{bus: ctx.Bus, log: ctx.Log}
	p.Named = "sentence"
	return p, nil
}

// Start subscribes to ais.raw and begins decoding.
func (p *SentenceProcessor) Start() error {
	if p.sub != nil {
		return nil
	}
	p.sub = p.bus.Subscribe(TopicRawSentence)
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.run()
	return p.BaseComponent.Start()
}

// Stop halts decoding and releases the subscription.
func (p *SentenceProcessor) Stop() error {
	if p.sub == nil {
		return p.BaseComponent.Stop()
	}
	close(p.stopCh)
	p.sub.Close()
	p.wg.Wait()
	p.sub = nil
	return p.BaseComponent.Stop()
}

func (p *SentenceProcessor) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case raw, ok := <-p.sub.Messages():
			if !ok {
				return
			}
			line, ok := raw.(string)
			if !ok {
				continue
			}
			msg, err := decodeSentence(line)
			if err != nil {
				p.log.Warn().Err(err).Str("sentence", line).Msg("failed to decode sentence")
				continue
			}
			p.bus.Publish(manager.TopicDecoded, msg)
		}
	}
}

func decodeSentence(line string) (vessel.DecodedMessage, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 2 {
		return vessel.DecodedMessage{}, errInvalidSentence(line)
	}

	now := time.Now()
	switch fields[0] {
	case "POS":
		if len(fields) != 6 {
			return vessel.DecodedMessage{}, errInvalidSentence(line)
		}
		lat, err1 := strconv.ParseFloat(fields[2], 64)
		lon, err2 := strconv.ParseFloat(fields[3], 64)
		sog, err3 := strconv.ParseFloat(fields[4], 64)
		cog, err4 := strconv.ParseFloat(fields[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return vessel.DecodedMessage{}, errInvalidSentence(line)
		}
		return vessel.DecodedMessage{
			MMSI: fields[1], Type: vessel.MessageTypePositionReport,
			HasPosition: true, Latitude: lat, Longitude: lon, SOG: sog, COG: cog,
			ReceivedAt: now,
		}, nil

	case "STATIC":
		if len(fields) != 5 {
			return vessel.DecodedMessage{}, errInvalidSentence(line)
		}
		return vessel.DecodedMessage{
			MMSI: fields[1], Type: vessel.MessageTypeStaticData,
			HasStatic: true, ShipName: fields[2], CallSign: fields[3], Destination: fields[4],
			ReceivedAt: now,
		}, nil

	default:
		return vessel.DecodedMessage{}, errInvalidSentence(line)
	}
}

type sentenceError struct{ line string }

func (e sentenceError) Error() string { return "builtin: invalid sentence: " + e.line }

func errInvalidSentence(line string) error { return sentenceError{line: line} }
