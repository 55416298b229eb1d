package engine

import "errors"

// Typed refusals returned by the control surface. These are local decisions,
// not exchange failures; callers map them to client-facing responses.
var (
	ErrAlreadyRunning  = errors.New("engine: already running")
	ErrNotRunning      = errors.New("engine: not running")
	ErrRunning         = errors.New("engine: refused while running")
	ErrAtCapacity      = errors.New("engine: max concurrent positions reached")
	ErrNoPosition      = errors.New("engine: no open position for symbol")
	ErrPositionBusy    = errors.New("engine: position transition in progress")
	ErrAlreadyInSide   = errors.New("engine: position already open in that direction")
	ErrUnknownStrategy = errors.New("engine: unknown strategy")
	ErrNoSymbols       = errors.New("engine: no symbols configured")
)
