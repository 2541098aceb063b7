package stove

// PublicState is the normalized stove state derived from the many raw
// firmware state integers. Values are numeric for easy serialization.
type PublicState int

const (
	StatePowerOff PublicState = iota
	StatePreheat
	StateHeating
	StatePoweredOn
	StateWaitingPowerOff
	StateWaitingProgramLoad
	StateError
	StateInvalid
)

func (s PublicState) String() string {
	switch s {
	case StatePowerOff:
		return "powered off"
	case StatePreheat:
		return "preheating"
	case StateHeating:
		return "heating"
	case StatePoweredOn:
		return "powered on"
	case StateWaitingPowerOff:
		return "waiting for power off"
	case StateWaitingProgramLoad:
		return "waiting for program load"
	case StateError:
		return "error"
	default:
		return "invalid"
	}
}

// StoveState pairs a raw firmware state with its human-readable description
// and normalized public state.
type StoveState struct {
	Raw         int         `json:"raw"`
	Description string      `json:"description"`
	Public      PublicState `json:"public"`
}

// LookupState maps a raw firmware state integer onto a StoveState. Raw
// values outside the known table map to StateInvalid rather than failing.
func LookupState(raw int) StoveState {
	switch raw {
	case -1:
		return StoveState{Raw: raw, Description: "error reading state", Public: StateInvalid}
	case 0:
		return StoveState{Raw: raw, Description: "stove off", Public: StatePowerOff}
	case 1, 2, 3, 4, 10:
		return StoveState{Raw: raw, Description: "preheating", Public: StatePreheat}
	case 5, 6:
		return StoveState{Raw: raw, Description: "combustion starting", Public: StateHeating}
	case 7:
		return StoveState{Raw: raw, Description: "stove running", Public: StatePoweredOn}
	case 8, 11, -3:
		return StoveState{Raw: raw, Description: "shutting down", Public: StateWaitingPowerOff}
	case -20:
		return StoveState{Raw: raw, Description: "waiting for program load", Public: StateWaitingProgramLoad}
	case -4:
		return StoveState{Raw: raw, Description: "stove in alarm", Public: StateError}
	default:
		return StoveState{Raw: raw, Description: "unknown state", Public: StateInvalid}
	}
}

// Operative mode codes reported by the firmware.
const (
	ModePower       = 0
	ModeTemperature = 1
	ModeEmergency   = 2
	ModeUnknown     = -1
)

// OperativeMode pairs a raw mode code with its description.
type OperativeMode struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// LookupMode maps a raw operative mode code onto an OperativeMode.
func LookupMode(code int) OperativeMode {
	switch code {
	case ModePower:
		return OperativeMode{Code: code, Description: "power mode"}
	case ModeTemperature:
		return OperativeMode{Code: code, Description: "temperature mode"}
	case ModeUnknown:
		return OperativeMode{Code: code, Description: "unknown"}
	default:
		return OperativeMode{Code: code, Description: "emergency mode"}
	}
}

// Alarm pairs an alarm code with a human-readable description.
type Alarm struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Known alarm codes. This is vendor data, not logic; unknown codes map to a
// generic description rather than failing.
var alarmDescriptions = map[string]string{
	"N":    "no active alarm",
	"A000": "stove shut down with alarm",
	"A001": "air inlet depression low",
	"A002": "air inlet depression high",
	"A003": "exhaust gas temperature low",
	"A004": "exhaust gas temperature high",
	"A005": "NTC probe temperature low",
	"A006": "NTC probe temperature high",
	"A009": "room temperature low",
	"A010": "room temperature high",
	"A011": "CPU temperature low",
	"A012": "CPU temperature high",
	"A013": "motor current low",
	"A014": "motor current high",
	"A015": "air inlet depression low",
	"A016": "exhaust gas temperature critically high",
	"A017": "NTC probe temperature critically high",
	"A018": "exhaust fan failure",
	"A019": "exhaust fan at maximum capacity",
	"A020": "probe failure",
	"A099": "stove out of fuel",
}

// LookupAlarm maps a firmware alarm code onto an Alarm.
func LookupAlarm(code string) Alarm {
	desc, ok := alarmDescriptions[code]
	if !ok {
		desc = "unknown alarm"
	}
	return Alarm{Code: code, Description: desc}
}
