package stove

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stovelink"
)

// Operation codes understood by the stove firmware (idOperacion).
const (
	OpGetClock         = 1094
	OpGetLanguage      = 1090
	OpGetAlarms        = 1079
	OpGetStoveType     = 1100
	OpGetHeaterType    = 1102
	OpGetOperativeMode = 1071
	OpGetTelemetry     = 1002

	OpSetClock         = 1095
	OpSetPowerState    = 1013
	OpSetTemperature   = 1019
	OpSetPowerLevel    = 1004
	OpSetOperativeMode = 1081
)

// Form/response field names used by the CGI dialect.
const (
	fieldEpoch       = "int_rx"
	fieldTemperature = "temperatura"
	fieldPowerLevel  = "potencia"
	fieldMode        = "modo_operacion"
	fieldFuncMode    = "modo_func"
	fieldOnOff       = "on_off"
	fieldState       = "estado"
	fieldTempSet     = "consigna_temperatura"
	fieldPowerSet    = "consigna_potencia"
	fieldAlarm       = "get_alarmas"
	fieldLanguage    = "idioma"
	fieldStoveType   = "tipoestufa"
	fieldHeaterType  = "tipo_agua"
)

// Setpoint bounds enforced before any write reaches the device.
const (
	MinTemperatureC = 12.0
	MaxTemperatureC = 40.0
	MinPowerLevel   = 1
	MaxPowerLevel   = 9
)

// Telemetry is the decoded main state snapshot (operation 1002).
type Telemetry struct {
	PowerOn             bool
	OperativeMode       OperativeMode
	FunctionalMode      OperativeMode
	PowerSetpoint       int
	TemperatureSetpoint float64
	CurrentTemperature  float64
	State               StoveState
}

// NetFlame layers typed operations for NetFlame-like stove controllers on
// top of the raw CGI Client.
type NetFlame struct {
	*Client
	loc *time.Location
}

// NewNetFlame builds the typed client. loc is the display timezone for
// clock readings; nil falls back to UTC.
func NewNetFlame(cfg Config, loc *time.Location) (*NetFlame, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &NetFlame{Client: c, loc: loc}, nil
}

// GetClock queries the stove internal clock. The firmware returns a Unix
// epoch in int_rx; its absence is a hard operation error because nothing
// useful can be decoded without it.
func (n *NetFlame) GetClock(ctx context.Context) (stovelink.ClockReading, error) {
	resp, err := n.Send(ctx, OpGetClock)
	if err != nil {
		return stovelink.ClockReading{}, err
	}

	raw, ok := resp.Params[fieldEpoch]
	if !ok || raw == "" {
		return stovelink.ClockReading{}, &OperationError{
			Op:  OpGetClock,
			Msg: fmt.Sprintf("%s not present in response: %q", fieldEpoch, strings.TrimSpace(resp.Raw)),
		}
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return stovelink.ClockReading{}, &ProtocolError{Msg: fmt.Sprintf("field %s: %q is not an epoch", fieldEpoch, raw), Err: err}
	}

	t := time.Unix(epoch, 0).In(n.loc)
	return stovelink.ClockReading{
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Label:  t.Format("15:04"),
		Date:   t.Format("02/01/2006"),
	}, nil
}

// SetClockNow sets the device clock to the current instant and reads it
// back. The vendor web UI does the same: the write acknowledgement is not
// trusted, a fresh read is.
func (n *NetFlame) SetClockNow(ctx context.Context) (stovelink.ClockReading, error) {
	epoch := strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := n.SendParams(ctx, OpSetClock, map[string]string{fieldEpoch: epoch}); err != nil {
		return stovelink.ClockReading{}, err
	}
	return n.GetClock(ctx)
}

// GetLanguage reads the configured device language code.
func (n *NetFlame) GetLanguage(ctx context.Context) (int, error) {
	resp, err := n.Send(ctx, OpGetLanguage)
	if err != nil {
		return 0, err
	}
	return intField(resp, fieldLanguage, 0)
}

// GetStoveType reads the firmware-specific stove type identifier.
func (n *NetFlame) GetStoveType(ctx context.Context) (int, error) {
	resp, err := n.Send(ctx, OpGetStoveType)
	if err != nil {
		return 0, err
	}
	return intField(resp, fieldStoveType, 0)
}

// GetHeaterType reads the heater/water system type identifier.
func (n *NetFlame) GetHeaterType(ctx context.Context) (int, error) {
	resp, err := n.Send(ctx, OpGetHeaterType)
	if err != nil {
		return 0, err
	}
	return intField(resp, fieldHeaterType, 0)
}

// GetOperativeMode reads the configured operation mode (power vs ambient
// temperature).
func (n *NetFlame) GetOperativeMode(ctx context.Context) (OperativeMode, error) {
	resp, err := n.Send(ctx, OpGetOperativeMode)
	if err != nil {
		return OperativeMode{}, err
	}
	code, err := intField(resp, fieldMode, ModeUnknown)
	if err != nil {
		return OperativeMode{}, err
	}
	return LookupMode(code), nil
}

// GetAlarm reads the current alarm state.
func (n *NetFlame) GetAlarm(ctx context.Context) (Alarm, error) {
	resp, err := n.Send(ctx, OpGetAlarms)
	if err != nil {
		return Alarm{}, err
	}
	code, ok := resp.Params[fieldAlarm]
	if !ok || code == "" {
		code = "N"
	}
	return LookupAlarm(code), nil
}

// GetTelemetry reads the main telemetry snapshot. Missing fields fall back
// to documented defaults (flags false, setpoints 0, state and mode -1);
// present but non-numeric values are a protocol error.
func (n *NetFlame) GetTelemetry(ctx context.Context) (Telemetry, error) {
	resp, err := n.Send(ctx, OpGetTelemetry)
	if err != nil {
		return Telemetry{}, err
	}

	mode, err := intField(resp, fieldMode, ModeUnknown)
	if err != nil {
		return Telemetry{}, err
	}
	funcMode, err := intField(resp, fieldFuncMode, ModeUnknown)
	if err != nil {
		return Telemetry{}, err
	}
	powerSet, err := intField(resp, fieldPowerSet, 0)
	if err != nil {
		return Telemetry{}, err
	}
	tempSet, err := floatField(resp, fieldTempSet, 0)
	if err != nil {
		return Telemetry{}, err
	}
	current, err := floatField(resp, fieldTemperature, 0)
	if err != nil {
		return Telemetry{}, err
	}
	state, err := intField(resp, fieldState, -1)
	if err != nil {
		return Telemetry{}, err
	}

	return Telemetry{
		PowerOn:             resp.Params[fieldOnOff] == "1",
		OperativeMode:       LookupMode(mode),
		FunctionalMode:      deriveFunctionalMode(mode, funcMode),
		PowerSetpoint:       powerSet,
		TemperatureSetpoint: tempSet,
		CurrentTemperature:  current,
		State:               LookupState(state),
	}, nil
}

// deriveFunctionalMode resolves the secondary mode descriptor. Its meaning
// depends on the primary mode: only in temperature mode does the raw
// modo_func field matter, everywhere else the stove is effectively driving
// power.
func deriveFunctionalMode(mode, funcMode int) OperativeMode {
	switch mode {
	case ModeTemperature:
		switch funcMode {
		case ModeTemperature:
			return OperativeMode{Code: funcMode, Description: "temperature mode"}
		case ModeUnknown:
			return OperativeMode{Code: funcMode, Description: "unknown"}
		default:
			return OperativeMode{Code: funcMode, Description: "power mode"}
		}
	case ModeUnknown:
		return OperativeMode{Code: ModeUnknown, Description: "unknown"}
	default:
		return OperativeMode{Code: ModePower, Description: "power mode"}
	}
}

// SetPowerState turns the stove on or off.
func (n *NetFlame) SetPowerState(ctx context.Context, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	_, err := n.SendParams(ctx, OpSetPowerState, map[string]string{fieldOnOff: val})
	return err
}

// SetTemperatureSetpoint writes a temperature setpoint, clamped to the
// supported range.
func (n *NetFlame) SetTemperatureSetpoint(ctx context.Context, temp float64) error {
	temp = ClampTemperature(temp)
	_, err := n.SendParams(ctx, OpSetTemperature, map[string]string{
		fieldTemperature: strconv.FormatFloat(temp, 'f', 1, 64),
	})
	return err
}

// SetPowerLevel writes a power level setpoint, clamped to 1..9.
func (n *NetFlame) SetPowerLevel(ctx context.Context, level int) error {
	level = ClampPowerLevel(level)
	_, err := n.SendParams(ctx, OpSetPowerLevel, map[string]string{
		fieldPowerLevel: strconv.Itoa(level),
	})
	return err
}

// SetOperativeMode writes the primary operative mode code.
func (n *NetFlame) SetOperativeMode(ctx context.Context, mode int) error {
	_, err := n.SendParams(ctx, OpSetOperativeMode, map[string]string{
		fieldMode: strconv.Itoa(mode),
	})
	return err
}

// ClampTemperature bounds a temperature setpoint to the supported range.
func ClampTemperature(v float64) float64 {
	if v < MinTemperatureC {
		return MinTemperatureC
	}
	if v > MaxTemperatureC {
		return MaxTemperatureC
	}
	return v
}

// ClampPowerLevel bounds a power level setpoint to the supported range.
func ClampPowerLevel(v int) int {
	if v < MinPowerLevel {
		return MinPowerLevel
	}
	if v > MaxPowerLevel {
		return MaxPowerLevel
	}
	return v
}

func intField(resp Response, key string, def int) (int, error) {
	v, ok := resp.Params[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ProtocolError{Msg: fmt.Sprintf("field %s: %q is not an integer", key, v), Err: err}
	}
	return n, nil
}

func floatField(resp Response, key string, def float64) (float64, error) {
	v, ok := resp.Params[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ProtocolError{Msg: fmt.Sprintf("field %s: %q is not a number", key, v), Err: err}
	}
	return f, nil
}
