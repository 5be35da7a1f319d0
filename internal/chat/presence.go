package chat

import (
	"sync"
	"time"
)

// presenceTracker holds the pending offline transition per user during the
// disconnect grace period. A reconnect inside the window cancels the timer,
// so the user never flaps through Offline.
type presenceTracker struct {
	mu      sync.Mutex
	pending map[uint]*time.Timer
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{pending: make(map[uint]*time.Timer)}
}

// ScheduleOffline arms (or re-arms) the offline transition for a user. fn
// runs after the grace period unless Cancel wins first.
func (p *presenceTracker) ScheduleOffline(userID uint, after time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.pending[userID]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(after, func() {
		p.mu.Lock()
		// A newer timer supersedes this one.
		if p.pending[userID] != timer {
			p.mu.Unlock()
			return
		}
		delete(p.pending, userID)
		p.mu.Unlock()

		fn()
	})
	p.pending[userID] = timer
}

// Cancel stops a pending offline transition. It reports whether one was
// armed.
func (p *presenceTracker) Cancel(userID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	timer, ok := p.pending[userID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(p.pending, userID)
	return true
}
