package tools

import (
	"context"
	"errors"
	"sync"

	"github.com/hirosato/checklist-portal/backend/internal/domain/portal"
)

// SessionPool hands out editing sessions to tool calls.
// Per-request pools open a fresh session for every call and write its edits
// before the call returns. Sticky pools keep one session per caller so the
// autosave debounce spans calls; Close writes whatever is still pending.
type SessionPool struct {
	svc    *portal.Service
	sticky bool

	mu       sync.Mutex
	sessions map[portal.Actor]*portal.Session
}

// NewRequestSessions returns a pool for stateless transports such as Lambda
func NewRequestSessions(svc *portal.Service) *SessionPool {
	return &SessionPool{svc: svc}
}

// NewStickySessions returns a pool for long lived transports such as stdio
func NewStickySessions(svc *portal.Service) *SessionPool {
	return &SessionPool{svc: svc, sticky: true, sessions: map[portal.Actor]*portal.Session{}}
}

// Acquire returns the session for actor and the function to call when the tool is done.
func (p *SessionPool) Acquire(actor portal.Actor) (*portal.Session, func(context.Context) error) {
	if !p.sticky {
		s := p.svc.OpenSession(actor)
		return s, s.Close
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[actor]
	if !ok {
		s = p.svc.OpenSession(actor)
		p.sessions[actor] = s
	}
	return s, func(context.Context) error { return nil }
}

// Close writes the pending edits of every sticky session
func (p *SessionPool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for actor, s := range p.sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(p.sessions, actor)
	}
	return errors.Join(errs...)
}
