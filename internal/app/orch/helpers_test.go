package orch

import (
	"context"
	"sync"
	"testing"

	"github.com/dkeye/meethub/internal/adapters/store"
	"github.com/dkeye/meethub/internal/app"
	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/goccy/go-json"
)

type fakeTransport struct {
	mu         sync.Mutex
	frames     []core.Frame
	pings      int
	full       bool
	closed     bool
	terminated bool
	code       int
	reason     string
}

func (t *fakeTransport) TrySend(f core.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.terminated {
		return core.ErrClosed
	}
	if t.full {
		return core.ErrBackpressure
	}
	t.frames = append(t.frames, f)
	return nil
}

func (t *fakeTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.terminated {
		return core.ErrClosed
	}
	t.pings++
	return nil
}

func (t *fakeTransport) Close(code int, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed, t.code, t.reason = true, code, reason
}

func (t *fakeTransport) Terminate() {
	t.mu.Lock()
	t.terminated = true
	t.mu.Unlock()
}

func (t *fakeTransport) closeCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed || t.terminated
}

// messages decodes everything received so far.
func (t *fakeTransport) messages(tb testing.TB) []map[string]any {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]map[string]any, 0, len(t.frames))
	for _, f := range t.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			tb.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (t *fakeTransport) ofType(tb testing.TB, typ string) []map[string]any {
	tb.Helper()
	var out []map[string]any
	for _, m := range t.messages(tb) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	t.frames = nil
	t.mu.Unlock()
}

type fakeVerifier map[string]domain.Identity

func (v fakeVerifier) Verify(_ context.Context, token string) (*domain.Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, core.ErrUnauthorized
	}
	return &id, nil
}

var testUsers = fakeVerifier{
	"tok-a": {UserID: "u-a", Username: "Alice", Role: domain.RoleHost},
	"tok-b": {UserID: "u-b", Username: "Bob", Role: domain.RoleParticipant},
	"tok-c": {UserID: "u-c", Username: "Carol", Role: domain.RoleParticipant},
}

const meeting domain.MeetingID = "m1"

func newTestHub(t *testing.T, opts ...Option) (*Hub, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore(domain.Meeting{ID: meeting, Status: domain.StatusLive, HasJoinedHost: true})
	return NewHub(testUsers, app.NewMeetingValidator(st), opts...), st
}

func connect(t *testing.T, h *Hub, token string) (*core.Connection, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	c, err := h.OnConnect(context.Background(), ft, meeting, token)
	if err != nil {
		t.Fatalf("OnConnect(%s): %v", token, err)
	}
	return c, ft
}

func send(t *testing.T, h *Hub, c *core.Connection, frame string) {
	t.Helper()
	h.Route(context.Background(), c, []byte(frame))
}

func join(t *testing.T, h *Hub, token, pid string) (*core.Connection, *fakeTransport) {
	t.Helper()
	c, ft := connect(t, h, token)
	send(t, h, c, `{"type":"participant_joined","participantId":"`+pid+`"}`)
	return c, ft
}

func appValidator(s core.MeetingStore) app.Validator { return app.NewMeetingValidator(s) }
