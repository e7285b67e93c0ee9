package shellrun

import (
	"sync"
	"time"
)

// session is the explicit ownership arena for one Runner: the auto-hide
// flag, the pending visibility-restore timer, and the set of pids this
// session has backgrounded. All cleanup funnels through Teardown.
type session struct {
	mu           sync.Mutex
	autoHidden   bool
	restoreTimer *time.Timer
	backgrounded map[int]bool
}

func newSession() *session {
	return &session{
		backgrounded: make(map[int]bool),
	}
}

func (s *session) markAutoHidden(v bool) {
	s.mu.Lock()
	s.autoHidden = v
	s.mu.Unlock()
}

func (s *session) wasAutoHidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoHidden
}

func (s *session) markBackgrounded(pid int) {
	s.mu.Lock()
	s.backgrounded[pid] = true
	s.mu.Unlock()
}

func (s *session) isBackgrounded(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backgrounded[pid]
}

// scheduleRestore arms the debounced visibility restore, replacing any timer
// already pending.
func (s *session) scheduleRestore(delay time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreTimer != nil {
		s.restoreTimer.Stop()
	}
	s.restoreTimer = time.AfterFunc(delay, fire)
}

// stopRestore disarms a pending restore without touching the auto-hidden
// flag. Used when a new foreground shell starts before the previous turn's
// restore fired: the panel must stay hidden for the whole run, and the flag
// carries the restore obligation over to this turn's finish.
func (s *session) stopRestore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreTimer != nil {
		s.restoreTimer.Stop()
		s.restoreTimer = nil
	}
}

// cancelRestore stops any pending restore. A manual visibility toggle is
// never overridden by the automatic logic.
func (s *session) cancelRestore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreTimer != nil {
		s.restoreTimer.Stop()
		s.restoreTimer = nil
	}
	s.autoHidden = false
}

// Teardown releases the timer the session owns.
func (s *session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreTimer != nil {
		s.restoreTimer.Stop()
		s.restoreTimer = nil
	}
}
