package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/fleet"
)

type fakeSink struct {
	ingested []TelemetryMessage
	ended    []string
	err      error
}

func (s *fakeSink) IngestTelemetry(ctx context.Context, msg TelemetryMessage) error {
	s.ingested = append(s.ingested, msg)
	return s.err
}

func (s *fakeSink) EndTelemetry(ctx context.Context, operatorID string) error {
	s.ended = append(s.ended, operatorID)
	return s.err
}

type countingMetrics struct {
	ok, failed int
}

func (m *countingMetrics) NATSPublishedInc() {}
func (m *countingMetrics) NATSPublishErrInc() {}
func (m *countingMetrics) PublishObserve(time.Duration) {}
func (m *countingMetrics) NATSSetConnected(bool) {}
func (m *countingMetrics) TelemetryIngested(ok bool) {
	if ok {
		m.ok++
	} else {
		m.failed++
	}
}

func TestHandleTelemetry(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		rest         string
		data         string
		sinkErr      error
		wantIngest   int
		wantEnded    int
		wantOK       int
		wantFailed   int
		wantOperator string
	}{
		{
			name:         "fix with operator in body",
			rest:         "op-1",
			data:         `{"operator_id":"op-1","lat":24.94,"lng":84.01,"timestamp":1700000000000}`,
			wantIngest:   1,
			wantOK:       1,
			wantOperator: "op-1",
		},
		{
			name:         "operator taken from subject",
			rest:         "op-2",
			data:         `{"lat":24.94,"lng":84.01}`,
			wantIngest:   1,
			wantOK:       1,
			wantOperator: "op-2",
		},
		{
			name:      "end of stream",
			rest:      "op-3.end",
			wantEnded: 1,
			wantOK:    1,
		},
		{
			name:       "malformed body",
			rest:       "op-4",
			data:       `{not json`,
			wantFailed: 1,
		},
		{
			name:       "unknown suffix",
			rest:       "op-5.pause",
			wantFailed: 1,
		},
		{
			name:         "sink rejects",
			rest:         "op-6",
			data:         `{"lat":100,"lng":0}`,
			sinkErr:      errors.New("invalid location"),
			wantIngest:   1,
			wantFailed:   1,
			wantOperator: "op-6",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := &countingMetrics{}
			p := newPublisher(nil, "", false, m)
			sink := &fakeSink{err: tc.sinkErr}

			p.handleTelemetry(context.Background(), sink, tc.rest, []byte(tc.data))

			if len(sink.ingested) != tc.wantIngest || len(sink.ended) != tc.wantEnded {
				t.Errorf("ingested %d ended %d, want %d %d", len(sink.ingested), len(sink.ended), tc.wantIngest, tc.wantEnded)
			}
			if m.ok != tc.wantOK || m.failed != tc.wantFailed {
				t.Errorf("metrics ok %d failed %d, want %d %d", m.ok, m.failed, tc.wantOK, tc.wantFailed)
			}
			if tc.wantOperator != "" && len(sink.ingested) == 1 && sink.ingested[0].OperatorID != tc.wantOperator {
				t.Errorf("operator = %q, want %q", sink.ingested[0].OperatorID, tc.wantOperator)
			}
		})
	}
}

func TestEventSubject(t *testing.T) {
	t.Parallel()

	p := newPublisher(nil, "rohtas", false, nil)

	testCases := []struct {
		name string
		evt  fleet.Event
		want string
	}{
		{
			name: "vehicle keyed by operator",
			evt:  fleet.Event{Type: fleet.EventVehicleUpdated, OperatorID: "op-1"},
			want: "rohtas.events.vehicle_updated.op-1",
		},
		{
			name: "ticket keyed by ticket id",
			evt:  fleet.Event{Type: fleet.EventTicketBooked, OperatorID: "op-1", Ticket: &domain.Ticket{ID: "t-9"}},
			want: "rohtas.events.ticket_booked.t-9",
		},
		{
			name: "unsafe characters replaced",
			evt:  fleet.Event{Type: fleet.EventVehicleDisconnected, OperatorID: "op 1.a>*"},
			want: "rohtas.events.vehicle_disconnected.op_1_a__",
		},
		{
			name: "empty key",
			evt:  fleet.Event{Type: fleet.EventVehicleUpdated},
			want: "rohtas.events.vehicle_updated._",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := p.EventSubject(tc.evt); got != tc.want {
				t.Errorf("subject = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewPublisherDefaultsPrefix(t *testing.T) {
	t.Parallel()

	p := newPublisher(nil, "", false, nil)
	if p.prefix != "fleet" {
		t.Errorf("prefix = %q, want fleet", p.prefix)
	}
}
