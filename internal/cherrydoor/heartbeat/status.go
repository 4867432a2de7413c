package heartbeat

// State is the coarse health of one subsystem. The zero value is
// StateUnknown.
type State int

const (
	StateUnknown State = iota
	StateOK
	StateErr
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateErr:
		return "err"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String. Unrecognised input maps to
// StateUnknown.
func ParseState(s string) State {
	switch s {
	case "ok":
		return StateOK
	case "err":
		return StateErr
	default:
		return StateUnknown
	}
}

// Status is a subsystem health value. Reason is only meaningful for
// StateErr.
type Status struct {
	State  State
	Reason string
}

func OK() Status                 { return Status{State: StateOK} }
func Err(reason string) Status   { return Status{State: StateErr, Reason: reason} }
func Unknown() Status            { return Status{State: StateUnknown} }
func (s Status) IsOK() bool      { return s.State == StateOK }
func (s Status) IsErr() bool     { return s.State == StateErr }
func (s Status) IsUnknown() bool { return s.State == StateUnknown }

func (s Status) String() string {
	if s.State == StateErr && s.Reason != "" {
		return "err: " + s.Reason
	}
	return s.State.String()
}

// Subsystem names, in report order.
const (
	SubsystemController = "controller"
	SubsystemLock       = "lock"
	SubsystemRFID       = "rfid"
	SubsystemLED        = "led"
	SubsystemSpeaker    = "speaker"
)

// StatusMap holds the health of the five device subsystems.
type StatusMap struct {
	Controller Status
	Lock       Status
	RFID       Status
	LED        Status
	Speaker    Status
}

// NamedStatus pairs a subsystem name with its status.
type NamedStatus struct {
	Name   string
	Status Status
}

// Subsystems lists every subsystem in report order.
func (m StatusMap) Subsystems() []NamedStatus {
	return []NamedStatus{
		{SubsystemController, m.Controller},
		{SubsystemLock, m.Lock},
		{SubsystemRFID, m.RFID},
		{SubsystemLED, m.LED},
		{SubsystemSpeaker, m.Speaker},
	}
}

// Set returns a copy of m with the named subsystem replaced. Unknown names
// leave m unchanged.
func (m StatusMap) Set(name string, s Status) StatusMap {
	switch name {
	case SubsystemController:
		m.Controller = s
	case SubsystemLock:
		m.Lock = s
	case SubsystemRFID:
		m.RFID = s
	case SubsystemLED:
		m.LED = s
	case SubsystemSpeaker:
		m.Speaker = s
	}
	return m
}

func allOK() StatusMap {
	return StatusMap{Controller: OK(), Lock: OK(), RFID: OK(), LED: OK(), Speaker: OK()}
}

// controllerFailure marks the controller as failed. The remaining
// subsystems are only observable through the controller, so they become
// unknown.
func controllerFailure(reason string) StatusMap {
	return StatusMap{Controller: Err(reason)}
}
