// internal/watchdog/watchdog.go
package watchdog

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is matched by every TimeoutError
var ErrTimeout = errors.New("watchdog timeout")

// TimeoutError reports how long the link had been silent
type TimeoutError struct {
	Elapsed   time.Duration
	Threshold time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("watchdog timeout: no activity for %s (threshold %s)",
		e.Elapsed.Round(time.Millisecond), e.Threshold)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Clock returns the current time. Readings must carry a monotonic component.
type Clock func() time.Time

// Watchdog detects a link that has stopped producing activity
type Watchdog struct {
	threshold time.Duration
	now       Clock
	mutex     sync.Mutex
	last      time.Time
}

// New creates a watchdog armed at the current time
func New(threshold time.Duration) *Watchdog {
	return NewWithClock(threshold, time.Now)
}

// NewWithClock creates a watchdog reading time from clock
func NewWithClock(threshold time.Duration, clock Clock) *Watchdog {
	return &Watchdog{
		threshold: threshold,
		now:       clock,
		last:      clock(),
	}
}

// Update records activity now
func (w *Watchdog) Update() {
	w.mutex.Lock()
	w.last = w.now()
	w.mutex.Unlock()
}

// Elapsed returns the time since the last Update
func (w *Watchdog) Elapsed() time.Duration {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.now().Sub(w.last)
}

// IsTimeout reports whether more than the threshold has passed since the
// last Update. Once true it stays true until the next Update.
func (w *Watchdog) IsTimeout() bool {
	return w.Elapsed() > w.threshold
}

// Check returns a TimeoutError when IsTimeout is true
func (w *Watchdog) Check() error {
	elapsed := w.Elapsed()
	if elapsed > w.threshold {
		return &TimeoutError{Elapsed: elapsed, Threshold: w.threshold}
	}
	return nil
}

// Threshold returns the configured silence threshold
func (w *Watchdog) Threshold() time.Duration {
	return w.threshold
}
