package syncqueue

// State is the coarse phase of the queue, for logging and metrics.
//
//	Idle -> HeadersInFlight -> HeadersPartial -> BlocksInFlight -> Draining
//	                 ^                                                |
//	                 +-------------------- (or Idle / Done) ----------+
type State int

const (
	StateIdle State = iota
	StateHeadersInFlight
	StateHeadersPartial
	StateBlocksInFlight
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHeadersInFlight:
		return "headers-in-flight"
	case StateHeadersPartial:
		return "headers-partial"
	case StateBlocksInFlight:
		return "blocks-in-flight"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
