package events

// Event is a structured state change published by a module engine.
type Event interface {
	EventType() string
}

// Emitter forwards events to downstream consumers such as the RPC feed and
// indexers. Engines hold an Emitter and never know who listens.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards everything. Engines default to it so event wiring is
// always optional.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// FuncEmitter adapts a function to the Emitter interface.
type FuncEmitter func(Event)

func (f FuncEmitter) Emit(evt Event) { f(evt) }
