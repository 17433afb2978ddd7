// Package publisher relays fleet events to NATS and ingests operator
// telemetry published there.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"villagelink/internal/fleet"
)

// PublisherMetrics records NATS activity.
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
	TelemetryIngested(ok bool)
}

// TelemetryMessage is one operator fix published on
// <prefix>.telemetry.<operatorId>.
type TelemetryMessage struct {
	OperatorID       string   `json:"operator_id"`
	OperatorName     string   `json:"operator_name"`
	VehicleType      string   `json:"vehicle_type"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Heading          float64  `json:"heading"`
	SpeedKmh         float64  `json:"speed_kmh"`
	TimestampMs      int64    `json:"timestamp"`
	Path             []string `json:"path"`
	CurrentStopIndex int      `json:"current_stop_index"`
	Capacity         int      `json:"capacity"`
	Occupancy        int      `json:"occupancy"`
	Status           string   `json:"status"`
}

// TelemetrySink applies ingested telemetry.
type TelemetrySink interface {
	IngestTelemetry(ctx context.Context, msg TelemetryMessage) error
	EndTelemetry(ctx context.Context, operatorID string) error
}

// NATSPublisher relays hub deltas and consumes telemetry.
type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

// NewNATSPublisher connects to NATS. m may be nil.
func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("villagelink"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("[nats] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("[nats] reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("[nats] closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, prefix, logSubjects, m), nil
}

func newPublisher(nc *nats.Conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	if prefix == "" {
		prefix = "fleet"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.Printf("[nats] drain: %v", err)
		}
		p.nc.Close()
	}
}

// Relay publishes a hub delta on <prefix>.events.<type>.<key>. Failures are
// logged and counted, never returned.
func (p *NATSPublisher) Relay(evt fleet.Event) {
	subject := p.EventSubject(evt)
	b, err := json.Marshal(evt.Wire())
	if err != nil {
		log.Printf("[nats] encode %s: %v", evt.Type, err)
		return
	}
	if p.logSubjects {
		log.Printf("[nats] publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		log.Printf("[nats] publish %s: %v", subject, err)
	}
}

// EventSubject returns the subject an event is relayed on.
func (p *NATSPublisher) EventSubject(evt fleet.Event) string {
	key := evt.OperatorID
	if evt.Ticket != nil {
		key = evt.Ticket.ID
	}
	return fmt.Sprintf("%s.events.%s.%s", p.prefix, evt.Type, subjectToken(key))
}

// SubscribeTelemetry feeds <prefix>.telemetry.<id> messages into sink until
// ctx is done. A message on <prefix>.telemetry.<id>.end disconnects the
// operator.
func (p *NATSPublisher) SubscribeTelemetry(ctx context.Context, sink TelemetrySink) error {
	base := p.prefix + ".telemetry."
	sub, err := p.nc.Subscribe(base+">", func(msg *nats.Msg) {
		p.handleTelemetry(ctx, sink, strings.TrimPrefix(msg.Subject, base), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe telemetry: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			log.Printf("[nats] unsubscribe telemetry: %v", err)
		}
	}()

	log.Printf("[nats] consuming telemetry on %s>", base)
	return nil
}

func (p *NATSPublisher) handleTelemetry(ctx context.Context, sink TelemetrySink, rest string, data []byte) {
	tokens := strings.Split(rest, ".")
	operatorID := tokens[0]

	var err error
	switch {
	case len(tokens) == 2 && tokens[1] == "end":
		err = sink.EndTelemetry(ctx, operatorID)
	case len(tokens) == 1:
		var msg TelemetryMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			if msg.OperatorID == "" {
				msg.OperatorID = operatorID
			}
			err = sink.IngestTelemetry(ctx, msg)
		}
	default:
		err = fmt.Errorf("unexpected subject suffix %q", rest)
	}

	if p.metrics != nil {
		p.metrics.TelemetryIngested(err == nil)
	}
	if err != nil {
		log.Printf("[nats] telemetry %s: %v", rest, err)
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
