package compiler

// state is a step in the lifecycle of a single Compile call:
//
//	Idle -> Submitted -> Classified -> [Resolved -> Classified] -> Done
//
// Resolved is entered at most once per call.
type state int

const (
	stateIdle state = iota
	stateSubmitted
	stateClassified
	stateResolved
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSubmitted:
		return "submitted"
	case stateClassified:
		return "classified"
	case stateResolved:
		return "resolved"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}
