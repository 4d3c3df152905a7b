// Package metrics exposes process-wide Prometheus collectors for the
// running daemon: active channel count, block sequence, notch
// attenuation, and the non-fatal error counters rerr.Send/rerr.BlockGap
// correspond to. A nil *Registry is a valid no-op receiver, so callers
// that never enabled the HTTP listener don't need nil checks at every
// call site.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/radiod/internal/channel"
	"github.com/cwsl/radiod/internal/rlog"
)

// Registry owns a dedicated prometheus.Registerer so that repeated
// process-in-test construction never collides with the global
// DefaultRegisterer.
type Registry struct {
	reg *prometheus.Registry

	activeChannels prometheus.Gauge
	blockSequence  prometheus.Counter
	blockGaps      prometheus.Counter
	sendErrors     prometheus.Counter
	notchAtten     *prometheus.GaugeVec
	driverUp       prometheus.Gauge

	srv *http.Server
}

// New registers the radiod metric family against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		activeChannels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radiod_active_channels",
			Help: "Number of channels currently registered.",
		}),
		blockSequence: factory.NewCounter(prometheus.CounterOpts{
			Name: "radiod_blocks_processed_total",
			Help: "Total fast-convolution blocks executed by the frontend.",
		}),
		blockGaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "radiod_block_gaps_total",
			Help: "Total BlockGap warnings observed across all channel readers.",
		}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "radiod_send_errors_total",
			Help: "Total SendError results from rtpout.Sender.Send.",
		}),
		notchAtten: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radiod_notch_attenuation_db",
			Help: "Current per-bin notch attenuation, keyed by bin index.",
		}, []string{"bin"}),
		driverUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radiod_driver_up",
			Help: "1 if the front end driver's Start goroutine is running, 0 once it has exited.",
		}),
	}
}

// SetActiveChannels records the current registry size.
func (r *Registry) SetActiveChannels(n int) {
	if r == nil {
		return
	}
	r.activeChannels.Set(float64(n))
}

// ObserveChannels refreshes the active-channel gauge from a live
// registry snapshot.
func (r *Registry) ObserveChannels(chans []*channel.Channel) {
	if r == nil {
		return
	}
	r.activeChannels.Set(float64(len(chans)))
}

// IncBlockSequence is called once per executed frontend block.
func (r *Registry) IncBlockSequence() {
	if r == nil {
		return
	}
	r.blockSequence.Inc()
}

// IncBlockGap is called whenever a channel reader detects a dropped
// block (rerr.BlockGap).
func (r *Registry) IncBlockGap() {
	if r == nil {
		return
	}
	r.blockGaps.Inc()
}

// IncSendError is called whenever rtpout.Sender.Send fails
// (rerr.Send).
func (r *Registry) IncSendError() {
	if r == nil {
		return
	}
	r.sendErrors.Inc()
}

// SetNotchAttenuation records the current attenuation of one notch
// bin, labelled by its index.
func (r *Registry) SetNotchAttenuation(bin int, db float64) {
	if r == nil {
		return
	}
	r.notchAtten.WithLabelValues(strconv.Itoa(bin)).Set(db)
}

// SetDriverUp records whether the front end's Start goroutine is
// still running.
func (r *Registry) SetDriverUp(up bool) {
	if r == nil {
		return
	}
	if up {
		r.driverUp.Set(1)
	} else {
		r.driverUp.Set(0)
	}
}

// Serve starts the /metrics HTTP listener on addr and blocks until ctx
// is cancelled, then shuts the listener down. Returns nil on a clean
// shutdown.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	if r == nil || addr == "" {
		<-ctx.Done()
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	r.srv = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- r.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.srv.Shutdown(shutdownCtx); err != nil {
			rlog.Printf("metrics: shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
