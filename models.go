package stovelink

import "time"

// ClockReading is the stove wall clock as reported by the firmware,
// converted to the configured display timezone.
type ClockReading struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Label  string `json:"label"`      // "HH:MM"
	Date   string `json:"date_label"` // "DD/MM/YYYY"
}

// StoveSnapshot is one consistent view of the stove, rebuilt on every poll
// cycle and emitted to the presentation layer. It is never mutated after
// construction; superseded snapshots are simply discarded.
type StoveSnapshot struct {
	Address            string       `json:"address"`
	Clock              ClockReading `json:"clock"`
	CurrentTempC       float64      `json:"current_temp_c"`
	TargetTempC        float64      `json:"target_temp_c"`
	PowerSetpoint      int          `json:"power_setpoint"` // 1..9
	PowerOn            bool         `json:"power_on"`
	ModeCode           int          `json:"mode_code"`
	ModeText           string       `json:"mode_text"`
	FunctionalModeCode int          `json:"functional_mode_code"`
	FunctionalModeText string       `json:"functional_mode_text"`
	StateCode          int          `json:"state_code"` // raw firmware state
	StateText          string       `json:"state_text"`
	NormalizedState    string       `json:"normalized_state"`
	AlarmCode          string       `json:"alarm_code"`
	AlarmText          string       `json:"alarm_text"`
	ObservedAt         time.Time    `json:"observed_at"`
}

// ConnectionStatus reflects where the background worker currently is in its
// search/validate/poll cycle.
type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	Address   string    `json:"address,omitempty"`
	Phase     string    `json:"phase"` // SEARCHING | VALIDATING | POLLING
	Since     time.Time `json:"since"`
}

// StoveEvent is a single entry in the append-only event log. Telemetry
// samples are deliberately not persisted; only lifecycle and command events.
type StoveEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECTED | DISCONNECTED | COMMAND | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
