package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stovelink"
	"stovelink/internal/discovery"
	"stovelink/internal/logger"
	"stovelink/internal/stove"
)

// Phase is where the worker currently is in its connection cycle.
type Phase int

const (
	PhaseSearching Phase = iota
	PhaseValidating
	PhasePolling
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "VALIDATING"
	case PhasePolling:
		return "POLLING"
	default:
		return "SEARCHING"
	}
}

// Device is the stove surface the worker drives. *stove.NetFlame satisfies
// it; tests substitute fakes.
type Device interface {
	GetTelemetry(ctx context.Context) (stove.Telemetry, error)
	GetAlarm(ctx context.Context) (stove.Alarm, error)
	GetClock(ctx context.Context) (stovelink.ClockReading, error)
	SetPowerState(ctx context.Context, on bool) error
	SetTemperatureSetpoint(ctx context.Context, temp float64) error
	SetPowerLevel(ctx context.Context, level int) error
	SetOperativeMode(ctx context.Context, mode int) error
}

// DeviceFactory builds a Device bound to a freshly discovered address.
type DeviceFactory func(address string) (Device, error)

// Config drives the discovery and poll cycle.
type Config struct {
	SubnetCIDR        string
	MAC               string
	DiscoveryInterval time.Duration
	PollInterval      time.Duration
	EventBuffer       int
}

const (
	defaultDiscoveryInterval = 15 * time.Second
	defaultPollInterval      = 5 * time.Second
	defaultEventBuffer       = 64

	// Temperature step for increase/decrease commands that carry no delta.
	defaultTempStep = 0.1
)

// Worker owns the connection cycle and all device I/O. One goroutine runs
// its loop; everything other goroutines may touch concurrently (phase view,
// latest snapshot, queue, event channel) is synchronized internally.
type Worker struct {
	cfg       Config
	scanner   discovery.Scanner
	newDevice DeviceFactory
	queue     *Queue
	emitter   *Emitter
	log       *logger.Logger

	// owned by the worker goroutine
	device Device

	mu      sync.RWMutex
	phase   Phase
	address string
	since   time.Time
	latest  *stovelink.StoveSnapshot

	// write guards, reset on every return to searching
	lastStateKnown bool
	lastState      stove.StoveState
	lastMode       int
}

// New validates cfg and builds a Worker. A missing subnet or MAC is a
// configuration error and prevents the worker from starting at all.
func New(cfg Config, scanner discovery.Scanner, factory DeviceFactory, log *logger.Logger) (*Worker, error) {
	if strings.TrimSpace(cfg.SubnetCIDR) == "" {
		return nil, &stove.ConfigError{Msg: "worker: subnet CIDR is required"}
	}
	if strings.TrimSpace(cfg.MAC) == "" {
		return nil, &stove.ConfigError{Msg: "worker: stove MAC address is required"}
	}
	if scanner == nil {
		return nil, &stove.ConfigError{Msg: "worker: scanner is required"}
	}
	if factory == nil {
		return nil, &stove.ConfigError{Msg: "worker: device factory is required"}
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = defaultDiscoveryInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	return &Worker{
		cfg:       cfg,
		scanner:   scanner,
		newDevice: factory,
		queue:     NewQueue(),
		emitter:   NewEmitter(cfg.EventBuffer),
		log:       log,
		phase:     PhaseSearching,
		since:     time.Now(),
		lastMode:  stove.ModeUnknown,
	}, nil
}

// Enqueue hands a user intent to the worker. It never blocks; the command
// is applied on the next poll tick, or discarded if no session exists then.
func (w *Worker) Enqueue(cmd Command) {
	if !w.connected() {
		w.queue.Clear()
		w.log.Debugf("command %q discarded, no active session", cmd.Kind)
		return
	}
	w.queue.Enqueue(cmd)
}

// Events returns the worker's outbound event stream.
func (w *Worker) Events() <-chan Event {
	return w.emitter.Events()
}

// Status reports the current connection phase.
func (w *Worker) Status() stovelink.ConnectionStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return stovelink.ConnectionStatus{
		Connected: w.phase == PhasePolling,
		Address:   w.address,
		Phase:     w.phase.String(),
		Since:     w.since,
	}
}

// Latest returns the most recent snapshot, if one has been assembled since
// the session was established.
func (w *Worker) Latest() (stovelink.StoveSnapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.latest == nil {
		return stovelink.StoveSnapshot{}, false
	}
	return *w.latest, true
}

func (w *Worker) connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase == PhasePolling
}

// Run drives the discovery/poll loop until ctx is cancelled. Only one timer
// is armed at a time: the discovery interval while searching, the poll
// interval while connected.
func (w *Worker) Run(ctx context.Context) {
	w.log.Infof("stove worker started, scanning %s for %s", w.cfg.SubnetCIDR, w.cfg.MAC)
	for {
		interval := w.cfg.DiscoveryInterval
		if w.connected() {
			interval = w.cfg.PollInterval
		}
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("stove worker stopping")
			return
		case <-timer.C:
		}

		if w.connected() {
			w.tickPoll(ctx)
		} else {
			w.tickDiscovery(ctx)
		}
	}
}

// tickDiscovery scans the subnet for the configured MAC and, on a match,
// validates the session with one telemetry read before entering the poll
// cycle.
func (w *Worker) tickDiscovery(ctx context.Context) {
	devices, err := w.scanner.Scan(ctx, w.cfg.SubnetCIDR)
	if err != nil {
		w.log.Debugf("discovery scan failed: %v", err)
		return
	}

	found, ok := discovery.FindByMAC(devices, w.cfg.MAC)
	if !ok {
		w.log.Debugf("stove %s not present among %d devices", w.cfg.MAC, len(devices))
		return
	}

	w.setPhase(PhaseValidating, found.IP)
	w.log.Infof("stove found at %s, validating", found.IP)

	dev, err := w.newDevice(found.IP)
	if err != nil {
		w.failSession(fmt.Sprintf("device setup for %s failed: %v", found.IP, err))
		return
	}
	if _, err := dev.GetTelemetry(ctx); err != nil {
		w.failSession(fmt.Sprintf("validation read at %s failed: %v", found.IP, err))
		return
	}

	w.device = dev
	w.queue.Clear()
	w.resetGuards()
	w.setPhase(PhasePolling, found.IP)
	w.emitter.Emit(Event{Kind: EventConnected, At: time.Now(), Address: found.IP})
	w.log.Infof("stove session established at %s", found.IP)
}

// tickPoll drains queued commands, then performs the telemetry, alarm and
// clock reads and emits one snapshot. Any read failure aborts the tick and
// tears the session down.
func (w *Worker) tickPoll(ctx context.Context) {
	for _, cmd := range w.queue.DrainAndClear() {
		if err := w.applyCommand(ctx, cmd); err != nil {
			msg := fmt.Sprintf("command %q failed: %v", cmd.Kind, err)
			w.log.Warn(msg)
			w.emitter.Emit(Event{Kind: EventLog, At: time.Now(), Message: msg})
		}
	}

	tel, err := w.device.GetTelemetry(ctx)
	if err != nil {
		w.failSession(fmt.Sprintf("telemetry read failed: %v", err))
		return
	}
	alarm, err := w.device.GetAlarm(ctx)
	if err != nil {
		w.failSession(fmt.Sprintf("alarm read failed: %v", err))
		return
	}
	clock, err := w.device.GetClock(ctx)
	if err != nil {
		w.failSession(fmt.Sprintf("clock read failed: %v", err))
		return
	}

	w.mu.Lock()
	w.lastState = tel.State
	w.lastStateKnown = true
	w.lastMode = tel.OperativeMode.Code
	snap := &stovelink.StoveSnapshot{
		Address:            w.address,
		Clock:              clock,
		CurrentTempC:       tel.CurrentTemperature,
		TargetTempC:        tel.TemperatureSetpoint,
		PowerSetpoint:      tel.PowerSetpoint,
		PowerOn:            tel.PowerOn,
		ModeCode:           tel.OperativeMode.Code,
		ModeText:           tel.OperativeMode.Description,
		FunctionalModeCode: tel.FunctionalMode.Code,
		FunctionalModeText: tel.FunctionalMode.Description,
		StateCode:          tel.State.Raw,
		StateText:          tel.State.Description,
		NormalizedState:    tel.State.Public.String(),
		AlarmCode:          alarm.Code,
		AlarmText:          alarm.Description,
		ObservedAt:         time.Now(),
	}
	w.latest = snap
	w.mu.Unlock()

	w.emitter.Emit(Event{Kind: EventSnapshot, At: snap.ObservedAt, Snapshot: snap})
}

// applyCommand translates one queued intent into at most one device write,
// after the last-known-state guards. A rejected guard is not an error.
func (w *Worker) applyCommand(ctx context.Context, cmd Command) error {
	w.mu.RLock()
	stateKnown := w.lastStateKnown
	state := w.lastState
	mode := w.lastMode
	latest := w.latest
	w.mu.RUnlock()

	switch cmd.Kind {
	case CmdIncreaseTemperature, CmdIncreasePower:
		return w.adjust(ctx, mode, latest, cmd.Delta, +1)

	case CmdDecreaseTemperature, CmdDecreasePower:
		return w.adjust(ctx, mode, latest, cmd.Delta, -1)

	case CmdSetPower:
		if cmd.On {
			if !stateKnown || state.Public != stove.StatePowerOff {
				w.log.Debugf("power-on skipped, stove is not off (state %s)", describeState(stateKnown, state))
				return nil
			}
			return w.device.SetPowerState(ctx, true)
		}
		if !stateKnown || !isRunning(state.Public) {
			w.log.Debugf("power-off skipped, stove is not running (state %s)", describeState(stateKnown, state))
			return nil
		}
		return w.device.SetPowerState(ctx, false)

	case CmdToggleMode:
		if mode == stove.ModeUnknown {
			w.log.Debug("mode toggle skipped, operative mode not known yet")
			return nil
		}
		target := stove.ModeTemperature
		if mode == stove.ModeTemperature {
			target = stove.ModePower
		}
		return w.device.SetOperativeMode(ctx, target)

	case CmdSetOperativeMode:
		if mode == stove.ModeUnknown {
			w.log.Debug("mode change skipped, operative mode not known yet")
			return nil
		}
		if cmd.Mode == mode {
			w.log.Debugf("mode change skipped, already in mode %d", mode)
			return nil
		}
		return w.device.SetOperativeMode(ctx, cmd.Mode)

	default:
		return fmt.Errorf("unsupported command %q", cmd.Kind)
	}
}

// adjust applies an increase/decrease intent against whichever setpoint the
// current operative mode selects: power level in power mode, temperature
// setpoint otherwise.
func (w *Worker) adjust(ctx context.Context, mode int, latest *stovelink.StoveSnapshot, delta float64, direction int) error {
	if latest == nil {
		w.log.Debug("adjustment skipped, no telemetry observed yet")
		return nil
	}
	if mode == stove.ModePower {
		level := stove.ClampPowerLevel(latest.PowerSetpoint + direction)
		if level == latest.PowerSetpoint {
			return nil
		}
		return w.device.SetPowerLevel(ctx, level)
	}
	if delta <= 0 {
		delta = defaultTempStep
	}
	target := stove.ClampTemperature(latest.TargetTempC + float64(direction)*delta)
	if target == latest.TargetTempC {
		return nil
	}
	return w.device.SetTemperatureSetpoint(ctx, target)
}

// failSession tears the current session down and returns to searching.
func (w *Worker) failSession(reason string) {
	w.device = nil
	w.queue.Clear()
	w.resetGuards()
	w.setPhase(PhaseSearching, "")
	w.emitter.Emit(Event{Kind: EventDisconnected, At: time.Now(), Reason: reason})
	w.log.Warnf("stove session lost: %s", reason)
}

func (w *Worker) resetGuards() {
	w.mu.Lock()
	w.lastStateKnown = false
	w.lastState = stove.StoveState{}
	w.lastMode = stove.ModeUnknown
	w.latest = nil
	w.mu.Unlock()
}

func (w *Worker) setPhase(p Phase, address string) {
	w.mu.Lock()
	w.phase = p
	w.address = address
	w.since = time.Now()
	w.mu.Unlock()
}

func isRunning(p stove.PublicState) bool {
	return p == stove.StatePreheat || p == stove.StateHeating || p == stove.StatePoweredOn
}

func describeState(known bool, s stove.StoveState) string {
	if !known {
		return "unknown"
	}
	return s.Public.String()
}
