package aliexpress

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Automation steps recorded on a Run.
const (
	StepStarting = "starting"

	// AutomationStepKey is the page storage key mirrored for observers
	// living inside the page.
	AutomationStepKey = "wm_automation_step"
)

// Run is the state of one discovery run. It is passed down the call chain
// instead of living in a process-wide variable; one goroutine writes it.
type Run struct {
	ID        string
	Keyword   string
	StartedAt time.Time

	mu        sync.Mutex
	step      string
	observers []func(runID, step string)
}

// NewRun creates a Run with a random ID.
func NewRun(keyword string) *Run {
	return &Run{
		ID:        newRunID(),
		Keyword:   keyword,
		StartedAt: time.Now(),
	}
}

// OnStep registers fn to be called on every step change.
func (r *Run) OnStep(fn func(runID, step string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// SetStep records the automation step and notifies observers.
func (r *Run) SetStep(step string) {
	r.mu.Lock()
	r.step = step
	observers := append([]func(string, string){}, r.observers...)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(r.ID, step)
	}
}

// Step returns the current automation step, "" before the search starts.
func (r *Run) Step() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.step
}

func newRunID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
