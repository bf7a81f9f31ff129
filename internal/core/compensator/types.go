package compensator

import "time"

const (
	// MinInterval and MaxInterval bound the compensation cadence. Values
	// outside the range are clamped, never handed to the sleep primitive.
	MinInterval = 1 * time.Millisecond
	MaxInterval = 100 * time.Millisecond

	// DefaultInterval suits most automatic weapons.
	DefaultInterval = 10 * time.Millisecond

	// idlePollInterval is how often the worker re-checks the trigger while
	// it is not held. Keeps CPU usage negligible while disarmed.
	idlePollInterval = 10 * time.Millisecond
)

// Offsets is the delta applied on each qualifying tick. X and Y are pointer
// movement in pixels; Z is wheel scroll steps. Fractional values accumulate
// across ticks and flush once they reach a whole unit.
type Offsets struct {
	X float64
	Y float64
	Z float64
}

type Config struct {
	Offsets      Offsets
	Interval     time.Duration
	CrouchScale  float64
	StartEnabled bool
}

// Pointer is the OS pointer-movement primitive. Implementations are
// best-effort; errors are reported once per enablement and the loop keeps
// ticking.
type Pointer interface {
	MoveRelative(dx, dy int32) error
	Scroll(steps int32) error
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
