package scanner

type State int

const (
	StateIdle State = iota
	StateScanning
	StateIdentified
	StateAwaitingPhoto
	StatePaused
	StateDuplicate
	StateAllCheckedIn
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateScanning:      "scanning",
	StateIdentified:    "identified",
	StateAwaitingPhoto: "awaiting_photo",
	StatePaused:        "paused",
	StateDuplicate:     "duplicate",
	StateAllCheckedIn:  "all_checked_in",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// CameraOn reports whether the camera is held in this state.
func (s State) CameraOn() bool {
	switch s {
	case StateScanning, StateIdentified, StateAwaitingPhoto, StateDuplicate:
		return true
	}
	return false
}

type Input int

const (
	InputOpen Input = iota
	InputOpenAllCheckedIn
	InputForceContinue
	InputDecline
	InputScanSuccess
	InputScanDuplicate
	InputScanError
	InputIdentifiedElapsed
	InputCommitDone
	InputCommitFailed
	InputDismiss
	InputInactivity
	InputResume
	InputClose
)

// Transition is the scanner's complete transition table. ok is false when the
// input is not accepted in the given state, in which case next equals from.
func Transition(from State, in Input) (next State, ok bool) {
	if in == InputClose {
		return StateIdle, true
	}

	switch from {
	case StateIdle:
		switch in {
		case InputOpen:
			return StateScanning, true
		case InputOpenAllCheckedIn:
			return StateAllCheckedIn, true
		}
	case StateAllCheckedIn:
		switch in {
		case InputForceContinue:
			return StateScanning, true
		case InputDecline:
			return StateIdle, true
		}
	case StateScanning:
		switch in {
		case InputScanSuccess:
			return StateIdentified, true
		case InputScanDuplicate:
			return StateDuplicate, true
		case InputScanError:
			return StateScanning, true
		case InputInactivity:
			return StatePaused, true
		}
	case StateIdentified:
		if in == InputIdentifiedElapsed {
			return StateAwaitingPhoto, true
		}
	case StateAwaitingPhoto:
		switch in {
		case InputCommitDone:
			return StateScanning, true
		case InputCommitFailed:
			return StateAwaitingPhoto, true
		}
	case StateDuplicate:
		switch in {
		case InputDismiss:
			return StateScanning, true
		case InputInactivity:
			return StatePaused, true
		}
	case StatePaused:
		if in == InputResume {
			return StateScanning, true
		}
	}
	return from, false
}
