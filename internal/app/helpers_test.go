package app

import (
	"sync"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
)

type recTransport struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (t *recTransport) TrySend(f core.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return core.ErrClosed
	}
	if t.full {
		return core.ErrBackpressure
	}
	t.frames = append(t.frames, f)
	return nil
}

func (t *recTransport) Ping() error { return nil }

func (t *recTransport) Close(int, string) {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *recTransport) Terminate() { t.Close(0, "") }

func (t *recTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

func newConn(meeting domain.MeetingID) (*core.Connection, *recTransport) {
	t := &recTransport{}
	return core.NewConnection(meeting, domain.Identity{UserID: "u"}, t), t
}
