package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"stovelink"
	"stovelink/internal/discovery"
	"stovelink/internal/logger"
	"stovelink/internal/stove"
)

type fakeScanner struct {
	devices map[string]discovery.Device
	err     error
}

func (f *fakeScanner) Scan(ctx context.Context, cidr string) (map[string]discovery.Device, error) {
	return f.devices, f.err
}

type fakeDevice struct {
	telemetry    stove.Telemetry
	telemetryErr error
	alarm        stove.Alarm
	alarmErr     error
	clock        stovelink.ClockReading
	clockErr     error

	writeErr   error
	powerCalls []bool
	tempCalls  []float64
	levelCalls []int
	modeCalls  []int
}

func (f *fakeDevice) GetTelemetry(ctx context.Context) (stove.Telemetry, error) {
	return f.telemetry, f.telemetryErr
}

func (f *fakeDevice) GetAlarm(ctx context.Context) (stove.Alarm, error) {
	return f.alarm, f.alarmErr
}

func (f *fakeDevice) GetClock(ctx context.Context) (stovelink.ClockReading, error) {
	return f.clock, f.clockErr
}

func (f *fakeDevice) SetPowerState(ctx context.Context, on bool) error {
	f.powerCalls = append(f.powerCalls, on)
	return f.writeErr
}

func (f *fakeDevice) SetTemperatureSetpoint(ctx context.Context, temp float64) error {
	f.tempCalls = append(f.tempCalls, temp)
	return f.writeErr
}

func (f *fakeDevice) SetPowerLevel(ctx context.Context, level int) error {
	f.levelCalls = append(f.levelCalls, level)
	return f.writeErr
}

func (f *fakeDevice) SetOperativeMode(ctx context.Context, mode int) error {
	f.modeCalls = append(f.modeCalls, mode)
	return f.writeErr
}

const (
	testMAC  = "00:1E:C0:AA:BB:CC"
	testIP   = "192.168.1.34"
	testCIDR = "192.168.1.0/24"
)

func telemetryFixture(rawState, mode int) stove.Telemetry {
	return stove.Telemetry{
		PowerOn:             rawState > 0,
		OperativeMode:       stove.LookupMode(mode),
		FunctionalMode:      stove.LookupMode(mode),
		PowerSetpoint:       3,
		TemperatureSetpoint: 21.5,
		CurrentTemperature:  20.8,
		State:               stove.LookupState(rawState),
	}
}

func newTestWorker(t *testing.T, dev *fakeDevice) (*Worker, *fakeScanner) {
	t.Helper()
	scanner := &fakeScanner{
		devices: map[string]discovery.Device{
			testIP: {IP: testIP, MAC: testMAC},
		},
	}
	w, err := New(Config{
		SubnetCIDR: testCIDR,
		MAC:        testMAC,
	}, scanner, func(address string) (Device, error) {
		if address != testIP {
			t.Fatalf("factory called with unexpected address %s", address)
		}
		return dev, nil
	}, logger.Get(logger.ErrorLevel))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w, scanner
}

func drainEvents(w *Worker) []Event {
	var events []Event
	for {
		select {
		case ev := <-w.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestNewRejectsMissingConfig(t *testing.T) {
	scanner := &fakeScanner{}
	factory := func(string) (Device, error) { return &fakeDevice{}, nil }
	log := logger.Get(logger.ErrorLevel)

	if _, err := New(Config{MAC: testMAC}, scanner, factory, log); err == nil {
		t.Error("expected error for missing subnet")
	}
	if _, err := New(Config{SubnetCIDR: testCIDR}, scanner, factory, log); err == nil {
		t.Error("expected error for missing MAC")
	}

	var cfgErr *stove.ConfigError
	_, err := New(Config{}, scanner, factory, log)
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *stove.ConfigError, got %T", err)
	}
}

func TestDiscoveryEstablishesSession(t *testing.T) {
	dev := &fakeDevice{telemetry: telemetryFixture(7, stove.ModeTemperature)}
	w, _ := newTestWorker(t, dev)

	w.tickDiscovery(context.Background())

	status := w.Status()
	if !status.Connected || status.Phase != "POLLING" {
		t.Fatalf("expected connected POLLING, got %+v", status)
	}
	if status.Address != testIP {
		t.Errorf("expected address %s, got %s", testIP, status.Address)
	}

	events := drainEvents(w)
	if len(events) != 1 || events[0].Kind != EventConnected || events[0].Address != testIP {
		t.Errorf("expected one connected event for %s, got %+v", testIP, events)
	}
}

func TestDiscoveryNoMatchStaysSearching(t *testing.T) {
	dev := &fakeDevice{telemetry: telemetryFixture(7, stove.ModeTemperature)}
	w, scanner := newTestWorker(t, dev)
	scanner.devices = map[string]discovery.Device{
		"192.168.1.1": {IP: "192.168.1.1", MAC: "30:B5:C2:11:22:33"},
	}

	w.tickDiscovery(context.Background())

	if status := w.Status(); status.Connected {
		t.Errorf("expected to remain searching, got %+v", status)
	}
	if events := drainEvents(w); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestDiscoveryScanErrorIsNotFatal(t *testing.T) {
	dev := &fakeDevice{telemetry: telemetryFixture(7, stove.ModeTemperature)}
	w, scanner := newTestWorker(t, dev)
	scanner.err = &discovery.ScanError{Msg: "nmap did not return any devices"}
	scanner.devices = nil

	w.tickDiscovery(context.Background())

	if status := w.Status(); status.Connected {
		t.Errorf("expected to remain searching, got %+v", status)
	}
}

func TestValidationFailureReturnsToSearching(t *testing.T) {
	dev := &fakeDevice{telemetryErr: &stove.TransportError{Msg: "timeout"}}
	w, _ := newTestWorker(t, dev)

	w.tickDiscovery(context.Background())

	status := w.Status()
	if status.Connected || status.Phase != "SEARCHING" {
		t.Fatalf("expected SEARCHING after failed validation, got %+v", status)
	}

	events := drainEvents(w)
	if len(events) != 1 || events[0].Kind != EventDisconnected {
		t.Fatalf("expected one disconnected event, got %+v", events)
	}
	if events[0].Reason == "" {
		t.Error("disconnected event should carry a reason")
	}
}

func TestPollAssemblesSnapshot(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarm:     stove.LookupAlarm("N"),
		clock:     stovelink.ClockReading{Hour: 15, Minute: 4, Label: "15:04", Date: "02/03/2024"},
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	drainEvents(w)

	w.tickPoll(context.Background())

	snap, ok := w.Latest()
	if !ok {
		t.Fatal("expected a snapshot after a successful poll")
	}
	if snap.Address != testIP {
		t.Errorf("expected address %s, got %s", testIP, snap.Address)
	}
	if !snap.PowerOn {
		t.Error("expected power on")
	}
	if snap.NormalizedState != "powered on" {
		t.Errorf("expected normalized state %q, got %q", "powered on", snap.NormalizedState)
	}
	if snap.TargetTempC != 21.5 || snap.CurrentTempC != 20.8 {
		t.Errorf("unexpected temperatures: %+v", snap)
	}
	if snap.ModeText != "temperature mode" {
		t.Errorf("expected mode text %q, got %q", "temperature mode", snap.ModeText)
	}
	if snap.AlarmCode != "N" {
		t.Errorf("expected alarm code N, got %q", snap.AlarmCode)
	}
	if snap.Clock.Label != "15:04" {
		t.Errorf("unexpected clock: %+v", snap.Clock)
	}

	events := drainEvents(w)
	if len(events) != 1 || events[0].Kind != EventSnapshot || events[0].Snapshot == nil {
		t.Fatalf("expected one snapshot event, got %+v", events)
	}
}

func TestPollReadFailureDisconnects(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarmErr:  &stove.ProtocolError{Msg: "malformed body"},
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	drainEvents(w)

	w.tickPoll(context.Background())

	status := w.Status()
	if status.Connected || status.Phase != "SEARCHING" {
		t.Fatalf("expected SEARCHING after failed poll, got %+v", status)
	}
	if _, ok := w.Latest(); ok {
		t.Error("expected cached snapshot to be cleared on disconnect")
	}

	events := drainEvents(w)
	if len(events) != 1 || events[0].Kind != EventDisconnected {
		t.Fatalf("expected one disconnected event, got %+v", events)
	}
}

func TestPowerOnGuard(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(0, stove.ModeTemperature), // stove off
		alarm:     stove.LookupAlarm("N"),
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	w.tickPoll(context.Background()) // populates last-known state

	w.Enqueue(SetPower(true))
	w.tickPoll(context.Background())

	if len(dev.powerCalls) != 1 || !dev.powerCalls[0] {
		t.Fatalf("expected one power-on write, got %v", dev.powerCalls)
	}

	// now the stove reports running; a second power-on must be skipped
	dev.telemetry = telemetryFixture(7, stove.ModeTemperature)
	w.tickPoll(context.Background())
	w.Enqueue(SetPower(true))
	w.tickPoll(context.Background())

	if len(dev.powerCalls) != 1 {
		t.Errorf("power-on against a running stove should be skipped, got %v", dev.powerCalls)
	}
}

func TestPowerOffGuard(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(0, stove.ModeTemperature), // stove off
		alarm:     stove.LookupAlarm("N"),
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	w.tickPoll(context.Background())

	// power-off while already off is skipped
	w.Enqueue(SetPower(false))
	w.tickPoll(context.Background())
	if len(dev.powerCalls) != 0 {
		t.Fatalf("power-off against a cold stove should be skipped, got %v", dev.powerCalls)
	}

	dev.telemetry = telemetryFixture(6, stove.ModeTemperature) // heating
	w.tickPoll(context.Background())
	w.Enqueue(SetPower(false))
	w.tickPoll(context.Background())

	if len(dev.powerCalls) != 1 || dev.powerCalls[0] {
		t.Errorf("expected one power-off write, got %v", dev.powerCalls)
	}
}

func TestAdjustFollowsModeAtDrainTime(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarm:     stove.LookupAlarm("N"),
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	w.tickPoll(context.Background())

	// temperature mode: increase adjusts the temperature setpoint
	w.Enqueue(IncreaseTemperature(0.5))
	w.tickPoll(context.Background())
	if len(dev.tempCalls) != 1 || dev.tempCalls[0] != 22.0 {
		t.Fatalf("expected temperature write 22.0, got %v", dev.tempCalls)
	}
	if len(dev.levelCalls) != 0 {
		t.Fatalf("no power level write expected in temperature mode, got %v", dev.levelCalls)
	}

	// power mode: the same intents step the power level instead
	dev.telemetry = telemetryFixture(7, stove.ModePower)
	w.tickPoll(context.Background())
	w.Enqueue(IncreasePower())
	w.Enqueue(DecreaseTemperature(1.0))
	w.tickPoll(context.Background())

	if len(dev.levelCalls) != 2 || dev.levelCalls[0] != 4 || dev.levelCalls[1] != 2 {
		t.Errorf("expected power level writes [4 2], got %v", dev.levelCalls)
	}
	if len(dev.tempCalls) != 1 {
		t.Errorf("no further temperature writes expected in power mode, got %v", dev.tempCalls)
	}
}

func TestAdjustClampsSetpoints(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarm:     stove.LookupAlarm("N"),
	}
	dev.telemetry.TemperatureSetpoint = 39.9
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	w.tickPoll(context.Background())

	w.Enqueue(IncreaseTemperature(5.0))
	w.tickPoll(context.Background())

	if len(dev.tempCalls) != 1 || dev.tempCalls[0] != stove.MaxTemperatureC {
		t.Errorf("expected clamped write %v, got %v", stove.MaxTemperatureC, dev.tempCalls)
	}
}

func TestToggleModeFlipsPowerAndTemperature(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarm:     stove.LookupAlarm("N"),
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())

	// before any poll the mode is unknown, so the toggle is skipped
	w.Enqueue(ToggleMode())
	w.tickPoll(context.Background())
	if len(dev.modeCalls) != 0 {
		t.Fatalf("toggle before first telemetry should be skipped, got %v", dev.modeCalls)
	}

	w.Enqueue(ToggleMode())
	w.tickPoll(context.Background())
	if len(dev.modeCalls) != 1 || dev.modeCalls[0] != stove.ModePower {
		t.Fatalf("expected toggle to power mode, got %v", dev.modeCalls)
	}

	dev.telemetry = telemetryFixture(7, stove.ModePower)
	w.tickPoll(context.Background())
	w.Enqueue(ToggleMode())
	w.tickPoll(context.Background())
	if len(dev.modeCalls) != 2 || dev.modeCalls[1] != stove.ModeTemperature {
		t.Errorf("expected toggle back to temperature mode, got %v", dev.modeCalls)
	}
}

func TestSetOperativeModeGuards(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarm:     stove.LookupAlarm("N"),
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	w.tickPoll(context.Background())

	// same mode as reported: skipped
	w.Enqueue(SetOperativeMode(stove.ModeTemperature))
	w.tickPoll(context.Background())
	if len(dev.modeCalls) != 0 {
		t.Fatalf("redundant mode write should be skipped, got %v", dev.modeCalls)
	}

	// emergency mode is reachable only through this explicit path
	w.Enqueue(SetOperativeMode(stove.ModeEmergency))
	w.tickPoll(context.Background())
	if len(dev.modeCalls) != 1 || dev.modeCalls[0] != stove.ModeEmergency {
		t.Errorf("expected explicit emergency mode write, got %v", dev.modeCalls)
	}
}

func TestCommandFailureDoesNotDisconnect(t *testing.T) {
	dev := &fakeDevice{
		telemetry: telemetryFixture(7, stove.ModeTemperature),
		alarm:     stove.LookupAlarm("N"),
	}
	w, _ := newTestWorker(t, dev)
	w.tickDiscovery(context.Background())
	w.tickPoll(context.Background())
	drainEvents(w)

	dev.writeErr = &stove.TransportError{Msg: "timeout"}
	w.Enqueue(IncreaseTemperature(0.5))
	w.Enqueue(DecreaseTemperature(0.5))
	w.tickPoll(context.Background())

	if status := w.Status(); !status.Connected {
		t.Fatalf("command failures must not tear the session down, got %+v", status)
	}
	if len(dev.tempCalls) != 2 {
		t.Errorf("expected both commands attempted despite errors, got %v", dev.tempCalls)
	}

	events := drainEvents(w)
	var logs, snapshots int
	for _, ev := range events {
		switch ev.Kind {
		case EventLog:
			logs++
		case EventSnapshot:
			snapshots++
		}
	}
	if logs != 2 || snapshots != 1 {
		t.Errorf("expected 2 log events and 1 snapshot, got %+v", events)
	}
}

func TestEnqueueWithoutSessionDiscards(t *testing.T) {
	dev := &fakeDevice{telemetry: telemetryFixture(7, stove.ModeTemperature)}
	w, _ := newTestWorker(t, dev)

	w.Enqueue(SetPower(true))
	if w.queue.Len() != 0 {
		t.Errorf("commands enqueued without a session should be discarded, queue has %d", w.queue.Len())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	dev := &fakeDevice{telemetry: telemetryFixture(7, stove.ModeTemperature)}
	w, _ := newTestWorker(t, dev)
	w.cfg.DiscoveryInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
