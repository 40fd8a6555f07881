package agent

// Event is one item in the planner's output stream. The producer closes the
// channel after emitting exactly one terminal event (EventDone or
// EventError).
type Event interface {
	isEvent()
}

// EventDelta carries one streamed answer fragment, exactly as produced by
// the model. Fragments concatenate to the final Answer up to the
// surrounding whitespace that Response trims.
type EventDelta struct {
	Text string
}

// EventToolStart marks the beginning of a tool dispatch. Telemetry-only;
// never forwarded to clients.
type EventToolStart struct {
	Tool string
	Args string
}

// EventToolEnd marks the end of a tool dispatch. Telemetry-only.
type EventToolEnd struct {
	Tool      string
	ElapsedMS int64
}

// EventDone is the successful terminal event.
type EventDone struct {
	Response *Response
}

// EventError is the failing terminal event.
type EventError struct {
	Err error
}

func (EventDelta) isEvent()     {}
func (EventToolStart) isEvent() {}
func (EventToolEnd) isEvent()   {}
func (EventDone) isEvent()      {}
func (EventError) isEvent()     {}
