package service

import (
	"context"
	"time"
)

// EnableSync starts the background synchronization loop. Each tick
// syncs only when the identity is authenticated at that moment; an
// anonymous cart is never auto-synchronized. Calling EnableSync while
// the loop is already running is a no-op.
func (s *service) EnableSync() {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.bgStop != nil {
		return
	}
	s.bgStop = make(chan struct{})
	s.bgDone = make(chan struct{})
	go s.backgroundLoop(s.bgStop, s.bgDone)
}

// DisableSync stops the background loop and waits for the in-flight
// tick, if any, to finish.
func (s *service) DisableSync() {
	s.bgMu.Lock()
	stop, done := s.bgStop, s.bgDone
	s.bgStop, s.bgDone = nil, nil
	s.bgMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Close stops background work owned by the service.
func (s *service) Close() {
	s.DisableSync()
}

func (s *service) backgroundLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.backgroundTick()
		}
	}
}

func (s *service) backgroundTick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if !s.sync.Connected() {
		return
	}
	if !s.identity.Identity(ctx).Authenticated {
		return
	}
	if _, err := s.syncNow(ctx); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithSessionID(ctx, s.sessionID), "background sync failed", err)
	}
}
