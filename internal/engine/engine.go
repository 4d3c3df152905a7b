// Package engine wires the driver, filter input, channel registry, and
// status loop into one process context, replacing the global mutable
// singletons (Frontend, Configtable, Template, Channel registry) with a
// single explicitly-constructed value threaded through every operation.
package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwsl/radiod/internal/channel"
	"github.com/cwsl/radiod/internal/config"
	"github.com/cwsl/radiod/internal/cpureport"
	"github.com/cwsl/radiod/internal/demod"
	"github.com/cwsl/radiod/internal/filter"
	"github.com/cwsl/radiod/internal/frontend"
	"github.com/cwsl/radiod/internal/mcast"
	"github.com/cwsl/radiod/internal/metrics"
	"github.com/cwsl/radiod/internal/monitor"
	"github.com/cwsl/radiod/internal/mqttstatus"
	"github.com/cwsl/radiod/internal/rerr"
	"github.com/cwsl/radiod/internal/rlog"
	"github.com/cwsl/radiod/internal/rtpout"
	"github.com/cwsl/radiod/internal/status"
)

// DefaultLifetimeSeconds is the idle-channel lifetime for freq==0
// channels, expressed in seconds before conversion to blocks.
const DefaultLifetimeSeconds = 20

// Engine is the single context value that used to be a set of global
// singletons: driver, shared filter input, channel registry, and the
// status/command loop, constructed once and threaded explicitly.
type Engine struct {
	name   string
	global config.Global
	iface  *net.Interface

	driver       frontend.Driver
	driverStatus frontend.Status

	filterIn *filter.Input
	registry *channel.Registry
	loop     *status.Loop

	presets *config.Presets

	lifetimeBlocks int
	blockCount     uint64

	stopTransfers atomic.Bool

	mu      sync.Mutex
	workers map[uint32]*workerHandle

	metrics *metrics.Registry
	mqtt    *mqttstatus.Publisher
	monitor *monitor.Monitor

	rtcp rtpout.RTCPSender // nil unless [global] rtcp is set
	sap  rtpout.SAPSender  // nil unless [global] sap is set
}

// RTCPInterval is how often a channel's RTCP sender-report goroutine
// fires, matching the original's 1-second rtcp_send cadence.
const RTCPInterval = time.Second

type workerHandle struct {
	output *filter.Output
	sender *rtpout.Sender
}

// New builds an Engine from a loaded configuration and presets table:
// sets up the named hardware driver, computes the overlap-save
// geometry (failing with ConfigError on a non-integral block length,
// per the stricter-than-C policy), and constructs the shared filter
// input and channel registry.
func New(cfg *config.File, presets *config.Presets, iface *net.Interface) (*Engine, error) {
	drv, err := frontend.New(cfg.Hardware.Device)
	if err != nil {
		return nil, err
	}
	section := cfg.Hardware.Extra
	dstatus, err := drv.Setup(section)
	if err != nil {
		return nil, rerr.HardwareSetup(err)
	}

	blockTimeMs := cfg.Global.BlockTimeMs
	if blockTimeMs == 0 {
		blockTimeMs = 20
	}
	overlap := cfg.Global.Overlap
	if overlap == 0 {
		overlap = 5
	}

	eL := dstatus.SampRate * float64(blockTimeMs) / 1000.0
	l := int(math.Round(eL))
	if math.Abs(eL-float64(l)) > 1e-6 {
		return nil, rerr.Config(fmt.Errorf("engine: blocktime %dms at samprate %g Hz gives non-integral block length %g",
			blockTimeMs, dstatus.SampRate, eL))
	}
	m := l/(overlap-1) + 1

	var spurs []float64 // configured spur list; none carried in the channel-group grammar yet

	filterIn, err := filter.NewInput(l, m, dstatus.SampRate, dstatus.IsReal, spurs)
	if err != nil {
		return nil, rerr.Config(err)
	}

	registry := channel.NewRegistry(channel.FrontendGeometry{
		N: filterIn.N(), M: filterIn.M(), SampRate: filterIn.SampRate(), IsReal: filterIn.IsReal(),
	})

	lifetimeBlocks := DefaultLifetimeSeconds * 1000 / blockTimeMs

	name := cfg.Global.Description
	if name == "" {
		name = cfg.Hardware.Name
	}

	e := &Engine{
		name:           name,
		global:         cfg.Global,
		iface:          iface,
		driver:         drv,
		driverStatus:   dstatus,
		filterIn:       filterIn,
		registry:       registry,
		presets:        presets,
		lifetimeBlocks: lifetimeBlocks,
		workers:        make(map[uint32]*workerHandle),
	}

	statusGroup := cfg.Global.Status
	if statusGroup == "" {
		statusGroup = name + "-status"
	}
	loop, err := status.NewLoop(context.Background(), statusGroup, iface, registry, cfg.Global.TTL, cfg.Global.TOS, e.createFromCommand)
	if err != nil {
		return nil, rerr.OutputBind(err)
	}
	e.loop = loop

	e.metrics = metrics.New()
	e.monitor = monitor.New(registry)

	if cfg.Global.MQTTBroker != "" {
		pub, err := mqttstatus.New(mqttstatus.Config{Broker: cfg.Global.MQTTBroker})
		if err != nil {
			rlog.Printf("engine: mqtt status mirror disabled: %v", err)
		} else {
			e.mqtt = pub
			loop.SetMirror(pub.Mirror)
		}
	}

	if cfg.Global.RTCP {
		e.rtcp = rtpout.LogRTCP{}
	}
	if cfg.Global.SAP {
		e.sap = rtpout.LogSAP{}
	}

	for _, group := range cfg.Channels {
		if group.Disable {
			continue
		}
		if err := e.createStaticGroup(group); err != nil {
			rlog.Printf("engine: channel group %q: %v", group.Name, err)
		}
	}

	return e, nil
}

// RequestStop sets the process-wide stop flag; every suspension point
// in Run and each worker loop checks it and exits without requiring
// the caller to cancel the context immediately. The caller (cmd/radiod's
// signal shim) is responsible for the 1-second grace period and the
// eventual hard context cancellation.
func (e *Engine) RequestStop() { e.stopTransfers.Store(true) }

// Stopping reports whether RequestStop has been called.
func (e *Engine) Stopping() bool { return e.stopTransfers.Load() }

// Nchans returns the number of currently registered channels.
func (e *Engine) Nchans() int { return len(e.registry.All()) }

// InstanceName returns the configured or derived instance name, used
// in the startup banner and for deriving a default status group name.
func (e *Engine) InstanceName() string { return e.name }

// SampRate exposes the resolved front-end sample rate for callers
// (the CPU-report/metrics packages) that want it without re-deriving
// it from config.
func (e *Engine) SampRate() float64 { return e.filterIn.SampRate() }

// Run drives the shared forward transform at its natural cadence: one
// ExecuteBlock per cycle, followed by idle reaping and a periodic
// status broadcast every Update blocks. It returns when ctx is
// cancelled, the stop flag is set, or the driver producer fails.
func (e *Engine) Run(ctx context.Context) error {
	driverErr := make(chan error, 1)
	go func() { driverErr <- e.driver.Start(ctx, e.filterIn) }()

	go func() {
		if err := e.loop.Run(ctx); err != nil && ctx.Err() == nil {
			rlog.Printf("engine: status loop exited: %v", err)
		}
	}()

	go cpureport.Run(ctx)

	if e.global.MetricsListen != "" {
		go func() {
			if err := e.metrics.Serve(ctx, e.global.MetricsListen); err != nil {
				rlog.Printf("engine: metrics listener exited: %v", err)
			}
		}()
	}
	if e.global.MonitorListen != "" {
		go func() {
			if err := e.monitor.Serve(ctx, e.global.MonitorListen); err != nil {
				rlog.Printf("engine: monitor listener exited: %v", err)
			}
		}()
	}

	update := e.global.Update
	if update == 0 {
		update = 25
	}

	defer e.filterIn.Close()
	defer e.loop.Close()
	defer e.metrics.SetDriverUp(false)
	defer func() {
		if e.mqtt != nil {
			e.mqtt.Close()
		}
	}()

	e.metrics.SetDriverUp(true)

	for {
		if e.stopTransfers.Load() {
			return nil
		}
		select {
		case err := <-driverErr:
			e.metrics.SetDriverUp(false)
			return rerr.DriverFailure(err)
		default:
		}

		seq, err := e.filterIn.ExecuteBlock(ctx)
		if err != nil {
			if ctx.Err() != nil || e.stopTransfers.Load() {
				return nil
			}
			return err
		}
		e.metrics.IncBlockSequence()
		for _, entry := range e.filterIn.NotchBank().Entries() {
			e.metrics.SetNotchAttenuation(entry.Bin, entry.AttenuationDB())
		}
		e.registry.ReapIdle()
		e.metrics.ObserveChannels(e.registry.All())
		e.blockCount++
		if seq%uint64(update) == 0 {
			e.loop.BroadcastAll()
		}
	}
}

// createFromCommand is status.Loop's hook for a CMD targeting an
// unknown SSRC: it builds the channel from the command's freq/preset
// plus [global]/compiled defaults and starts its worker pair before
// the channel is visible as Running.
func (e *Engine) createFromCommand(cmd status.Command) (*channel.Channel, error) {
	params := channel.Params{SSRC: cmd.SSRC}
	if cmd.HasFreq {
		params.Freq = cmd.Freq
	}
	if cmd.HasPreset {
		params.Preset = cmd.Preset
	}
	if cmd.HasLowEdge {
		params.BandwidthLow = cmd.LowEdge
	}
	if cmd.HasHighEdge {
		params.BandwidthHigh = cmd.HighEdge
	}

	preset, demodName := e.resolvePreset(params.Preset)
	resolved := channel.Resolve(params, preset, e.globalParams(), e.compiledDefaults())

	ch, err := e.registry.Create(resolved)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, rerr.SSRCExhausted(cmd.SSRC, 1)
	}
	if err := e.startWorker(ch, demodName); err != nil {
		e.registry.Destroy(ch)
		return nil, err
	}
	return ch, nil
}

// createStaticGroup expands one config channel-group section into one
// channel per listed frequency, probing for a free SSRC starting at
// the explicit ssrc key (if any) or a default derived from the
// frequency's decimal digits, matching the source's collision policy.
func (e *Engine) createStaticGroup(group config.ChannelGroup) error {
	if len(group.Freqs) == 0 {
		return e.createStaticChannel(group, 0, group.SSRC)
	}
	for _, freq := range group.Freqs {
		want := group.SSRC
		if want == 0 {
			want = defaultSSRC(freq)
		}
		if err := e.createStaticChannel(group, freq, want); err != nil {
			return err
		}
	}
	return nil
}

// defaultSSRC mirrors the source's default-SSRC derivation: the
// decimal digits of the frequency, concatenated as an integer.
func defaultSSRC(freqHz float64) uint32 {
	s := fmt.Sprintf("%.0f", freqHz)
	var v uint32
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		v = v*10 + uint32(r-'0')
	}
	return v
}

func (e *Engine) createStaticChannel(group config.ChannelGroup, freq float64, wantSSRC uint32) error {
	if wantSSRC == 0 {
		return nil // 0 is reserved; a group with neither ssrc nor freq has nothing to key on
	}
	params := channel.Params{
		Freq:      freq,
		Preset:    group.Preset,
		Encoding:  group.Encoding,
		DataGroup: group.Data,
	}

	preset, demodName := e.resolvePreset(params.Preset)
	resolved := channel.Resolve(params, preset, e.globalParams(), e.compiledDefaults())

	ch, err := e.registry.ProbeCreate(wantSSRC, resolved)
	if err != nil {
		return err
	}
	if err := e.startWorker(ch, demodName); err != nil {
		e.registry.Destroy(ch)
		return err
	}
	return nil
}

// resolvePreset looks up name in the presets table, warning and
// falling back to compiled/[global] defaults on a miss rather than
// failing the channel, per the PresetLoadError propagation policy.
func (e *Engine) resolvePreset(name string) (*channel.Preset, string) {
	if name == "" || e.presets == nil {
		return nil, name
	}
	p, ok := e.presets.Lookup(name)
	if !ok {
		rlog.Printf("engine: preset %q not found, using defaults", name)
		return nil, name
	}
	return p, p.Demod
}

// globalParams is the [global]-section tier of template resolution:
// overrides compiledDefaults but yields to a preset entry or the
// channel's own section.
func (e *Engine) globalParams() channel.Params {
	return channel.Params{
		Preset:    e.global.Preset,
		DataGroup: e.global.Data,
		TTL:       e.global.TTL,
	}
}

// compiledDefaults is the lowest-priority tier: values a channel gets
// only when neither its section, a preset, nor [global] set them.
func (e *Engine) compiledDefaults() channel.Params {
	statusGroup := e.global.Status
	if statusGroup == "" {
		statusGroup = e.name + "-status"
	}
	dataGroup := e.name + "-pcm"
	return channel.Params{
		DataGroup:      dataGroup,
		StatusGroup:    statusGroup,
		LifetimeBlocks: e.lifetimeBlocks,
	}
}

// startWorker builds the per-channel filter-output stage, binds the
// demodulator named by demodName, and spawns the worker goroutine that
// drives both plus the RTP packetizer until the channel is destroyed.
func (e *Engine) startWorker(ch *channel.Channel, demodName string) error {
	reader := e.filterIn.Subscribe()
	low, high := ch.Bandwidth()
	out, err := filter.NewOutput(reader, ch.Freq(), low, high)
	if err != nil {
		return err
	}
	if out.ClampedWarning() {
		rlog.Printf("channel %d: requested bandwidth clamped to the analysis window", ch.SSRC())
	}

	sampRate := int(e.filterIn.SampRate())
	sender, err := rtpout.NewSender(ch, sampRate, e.iface)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.workers[ch.SSRC()] = &workerHandle{output: out, sender: sender}
	e.mu.Unlock()

	dmod := demod.ByPreset(demodName)
	workerCtx, cancel := context.WithCancel(context.Background())
	wg := ch.SetWorkerCancel(cancel)
	wg.Add(1)
	ch.Acquire()

	if e.sap != nil {
		if err := e.sap.Announce(ch); err != nil {
			rlog.V(1).Printf("channel %d: sap announce: %v", ch.SSRC(), err)
		}
	}
	if e.rtcp != nil {
		wg.Add(1)
		go e.runRTCP(workerCtx, wg, ch)
	}

	go func() {
		defer wg.Done()
		defer ch.Release()
		defer sender.Close()
		defer func() {
			e.mu.Lock()
			delete(e.workers, ch.SSRC())
			e.mu.Unlock()
		}()
		defer func() {
			if e.sap != nil {
				if err := e.sap.Withdraw(ch); err != nil {
					rlog.V(1).Printf("channel %d: sap withdraw: %v", ch.SSRC(), err)
				}
			}
		}()
		for {
			block, gap, err := out.Next(workerCtx)
			if err != nil {
				return
			}
			if gap {
				rlog.V(1).Printf("channel %d: block gap detected", ch.SSRC())
				e.metrics.IncBlockGap()
			}
			samples := dmod.Process(block)
			if err := sender.Send(samples); err != nil {
				rlog.V(1).Printf("channel %d: send: %v", ch.SSRC(), err)
				e.metrics.IncSendError()
			}
		}
	}()

	e.registry.StartDemod(ch)
	return nil
}

// runRTCP sends a periodic sender report for ch until workerCtx is
// cancelled, matching the original's per-channel rtcp_send thread.
func (e *Engine) runRTCP(workerCtx context.Context, wg *sync.WaitGroup, ch *channel.Channel) {
	defer wg.Done()
	ticker := time.NewTicker(RTCPInterval)
	defer ticker.Stop()
	for {
		select {
		case <-workerCtx.Done():
			return
		case <-ticker.C:
			if err := e.rtcp.SendReport(ch.RTP()); err != nil {
				rlog.V(1).Printf("channel %d: rtcp: %v", ch.SSRC(), err)
			}
		}
	}
}

// DumpYAML writes a structured YAML snapshot of the global settings
// and every live channel's resolved parameters. No command path
// calls it; the status loop has no query action.
func (e *Engine) DumpYAML(w io.Writer) error {
	dump := config.File{
		Global: e.global,
	}
	for _, ch := range e.registry.All() {
		low, high := ch.Bandwidth()
		data, ttl, encoding := ch.Output()
		dump.Channels = append(dump.Channels, config.ChannelGroup{
			Name:     fmt.Sprintf("ssrc-%d", ch.SSRC()),
			Freqs:    []float64{ch.Freq()},
			SSRC:     ch.SSRC(),
			Encoding: encoding,
			Data:     data,
			Extra:    map[string]string{"low": fmt.Sprintf("%g", low), "high": fmt.Sprintf("%g", high), "ttl": fmt.Sprintf("%d", ttl)},
		})
	}
	body, err := config.Dump(&dump)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, body)
	return err
}

// DefaultInterface resolves the operating interface named in
// [global] iface, falling back to mcast.DefaultInterface when unset.
func DefaultInterface(name string) (*net.Interface, error) {
	if name == "" {
		return mcast.DefaultInterface()
	}
	return net.InterfaceByName(name)
}
