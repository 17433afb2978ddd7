// Package metrics exposes Prometheus metrics for the fleet server.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"villagelink/internal/domain"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveVehicles prometheus.Gauge
	OpenTickets    prometheus.Gauge
	Subscribers    prometheus.Gauge

	DeltasPublished prometheus.Counter
	DeltasDropped   prometheus.Counter

	RouteResolutions *prometheus.CounterVec // source label
	ProviderDuration *prometheus.HistogramVec

	WalletTransfers *prometheus.CounterVec // result label
	LedgerBlocks    prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
	TelemetryMsgs   *prometheus.CounterVec // result label
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagelink_active_vehicles",
			Help: "Number of vehicles currently online.",
		}),
		OpenTickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagelink_open_tickets",
			Help: "Number of tickets in the live open set.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagelink_stream_subscribers",
			Help: "Number of live stream subscribers.",
		}),
		DeltasPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "villagelink_deltas_published_total",
			Help: "Deltas delivered to subscriber buffers.",
		}),
		DeltasDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "villagelink_deltas_dropped_total",
			Help: "Deltas dropped because a subscriber buffer was full.",
		}),
		RouteResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "villagelink_route_resolutions_total",
			Help: "Route resolutions by source.",
		}, []string{"source"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "villagelink_route_provider_duration_seconds",
			Help:    "Duration of road-geometry provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"outcome"}),
		WalletTransfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "villagelink_wallet_transfers_total",
			Help: "Wallet transfers by result.",
		}, []string{"result"}),
		LedgerBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "villagelink_ledger_blocks_total",
			Help: "Ledger blocks appended.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "villagelink_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "villagelink_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagelink_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "villagelink_nats_publish_duration_seconds",
			Help:    "Duration to publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		TelemetryMsgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "villagelink_telemetry_messages_total",
			Help: "Telemetry messages consumed from NATS by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.ActiveVehicles, c.OpenTickets, c.Subscribers,
		c.DeltasPublished, c.DeltasDropped,
		c.RouteResolutions, c.ProviderDuration,
		c.WalletTransfers, c.LedgerBlocks,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.TelemetryMsgs,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
	log.Printf("[metrics] listening on %s", addr)
	return srv
}

// Hub

func (c *Collector) HubDeltaPublished()   { c.DeltasPublished.Inc() }
func (c *Collector) HubDeltaDropped()     { c.DeltasDropped.Inc() }
func (c *Collector) HubSubscribers(n int) { c.Subscribers.Set(float64(n)) }
func (c *Collector) HubVehicles(n int)    { c.ActiveVehicles.Set(float64(n)) }
func (c *Collector) HubOpenTickets(n int) { c.OpenTickets.Set(float64(n)) }

// Routing

func (c *Collector) RouteResolved(source domain.RouteSource) {
	c.RouteResolutions.WithLabelValues(string(source)).Inc()
}

func (c *Collector) RouteProviderObserve(d time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.ProviderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Wallet and ledger

func (c *Collector) WalletTransfer(result string) { c.WalletTransfers.WithLabelValues(result).Inc() }
func (c *Collector) LedgerBlockAppended()         { c.LedgerBlocks.Inc() }

// NATS

func (c *Collector) NATSPublishedInc()               { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()              { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) TelemetryIngested(ok bool) {
	if ok {
		c.TelemetryMsgs.WithLabelValues("ok").Inc()
		return
	}
	c.TelemetryMsgs.WithLabelValues("error").Inc()
}
