package quota

import "fmt"

// DefaultCap is the per-session byte budget for ingested files.
const DefaultCap int64 = 1 << 20

// ExceededError is returned when a file would bring the session to or past the cap.
type ExceededError struct {
	Cap      int64
	Current  int64
	Incoming int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("session quota exceeded: %d + %d bytes reaches cap of %d", e.Current, e.Incoming, e.Cap)
}

// Guard enforces the cap before an asset is added (reject-before-ingest).
// Text length is not counted.
type Guard struct {
	Cap int64
}

func NewGuard(cap int64) Guard {
	if cap <= 0 {
		cap = DefaultCap
	}
	return Guard{Cap: cap}
}

// Check returns an *ExceededError when current+incoming >= Cap.
func (g Guard) Check(current, incoming int64) error {
	if current+incoming >= g.Cap {
		return &ExceededError{Cap: g.Cap, Current: current, Incoming: incoming}
	}
	return nil
}

// Remaining is the number of bytes that can still be ingested without hitting the cap.
func (g Guard) Remaining(current int64) int64 {
	left := g.Cap - current - 1
	if left < 0 {
		return 0
	}
	return left
}
