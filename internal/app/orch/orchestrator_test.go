package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/pion/webrtc/v4"
)

func TestOnConnectRejectsBadToken(t *testing.T) {
	h, _ := newTestHub(t)
	for _, tok := range []string{"", "forged"} {
		ft := &fakeTransport{}
		c, err := h.OnConnect(context.Background(), ft, meeting, tok)
		if c != nil || !errors.Is(err, core.ErrUnauthorized) {
			t.Fatalf("token %q: got %v, %v", tok, c, err)
		}
		if ft.closeCode() != core.CloseUnauthorized {
			t.Errorf("token %q: close code %d, want %d", tok, ft.closeCode(), core.CloseUnauthorized)
		}
		if len(ft.messages(t)) != 0 {
			t.Errorf("token %q: auth failure sent a payload", tok)
		}
	}
	if h.Rooms.Len() != 0 {
		t.Fatal("refused connection joined a room")
	}
}

func TestOnConnectRejectsUnusableMeeting(t *testing.T) {
	h, st := newTestHub(t)
	st.Put(domain.Meeting{ID: "ended", Status: domain.StatusEnded, HasJoinedHost: true})
	st.Put(domain.Meeting{ID: "hostless", Status: domain.StatusLive})

	for _, id := range []domain.MeetingID{"missing", "ended", "hostless"} {
		ft := &fakeTransport{}
		_, err := h.OnConnect(context.Background(), ft, id, "tok-a")
		if !errors.Is(err, core.ErrMeetingInvalid) {
			t.Fatalf("%s: err = %v", id, err)
		}
		if ft.closeCode() != core.CloseMeetingInvalid {
			t.Errorf("%s: close code %d", id, ft.closeCode())
		}
		if e := ft.ofType(t, core.TypeError); len(e) != 1 || e[0]["code"] != core.ErrCodeMeetingInvalid {
			t.Errorf("%s: error events %v", id, e)
		}
	}
	if h.Rooms.Len() != 0 {
		t.Fatal("refused connection joined a room")
	}
}

type failingStore struct{}

func (failingStore) GetMeeting(context.Context, domain.MeetingID) (*domain.Meeting, error) {
	return nil, errors.New("db down")
}

func TestOnConnectStoreFailure(t *testing.T) {
	h := NewHub(testUsers, appValidator(failingStore{}))
	ft := &fakeTransport{}
	if _, err := h.OnConnect(context.Background(), ft, meeting, "tok-a"); err == nil {
		t.Fatal("expected error")
	}
	if ft.closeCode() != core.CloseInternal {
		t.Errorf("close code %d, want %d", ft.closeCode(), core.CloseInternal)
	}
}

func TestPresenceDeferredUntilAnnounce(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := connect(t, h, "tok-a")
	if h.Rooms.Size(meeting) != 1 {
		t.Fatalf("room size %d", h.Rooms.Size(meeting))
	}
	if h.Presence.Len() != 0 {
		t.Fatal("presence registered before announce")
	}
	send(t, h, c, `{"type":"participant_joined","participantId":"pa"}`)
	if h.Presence.Resolve(meeting, "pa") != c {
		t.Fatal("announce did not register presence")
	}
}

// A joins, B joins, B chats, A vanishes and the sweep reclaims it.
func TestJoinChatAndLivenessEviction(t *testing.T) {
	h, _ := newTestHub(t)
	mon := NewMonitor(h, 30*time.Second)

	a, at := join(t, h, "tok-a", "pa")
	if h.Rooms.Size(meeting) != 1 {
		t.Fatalf("room size %d, want 1", h.Rooms.Size(meeting))
	}
	b, bt := join(t, h, "tok-b", "pb")
	if h.Rooms.Size(meeting) != 2 {
		t.Fatalf("room size %d, want 2", h.Rooms.Size(meeting))
	}

	joined := at.ofType(t, core.TypeParticipantJoined)
	if len(joined) != 1 || joined[0]["participantId"] != "pb" || joined[0]["userId"] != "u-b" {
		t.Fatalf("A saw joins %v", joined)
	}
	roster := bt.ofType(t, core.TypeRosterSync)
	if len(roster) != 1 {
		t.Fatalf("B roster syncs %v", roster)
	}
	parts := roster[0]["participants"].([]any)
	if len(parts) != 1 || parts[0].(map[string]any)["participantId"] != "pa" {
		t.Fatalf("roster participants %v", parts)
	}
	if len(bt.ofType(t, core.TypeParticipantJoined)) != 0 {
		t.Fatal("B received its own join")
	}

	send(t, h, b, `{"type":"chat_message","message":"hi","userId":"u-b","username":"Bob"}`)
	chats := at.ofType(t, core.TypeChatMessage)
	if len(chats) != 1 || chats[0]["message"] != "hi" || chats[0]["meetingId"] != string(meeting) {
		t.Fatalf("A chats %v", chats)
	}
	if len(bt.ofType(t, core.TypeChatMessage)) != 0 {
		t.Fatal("sender received its own chat")
	}

	// A stops answering; B keeps ponging.
	res := mon.Sweep(context.Background())
	if res.Pinged != 2 || res.Evicted != 0 {
		t.Fatalf("first sweep %+v", res)
	}
	h.OnPong(b)
	res = mon.Sweep(context.Background())
	if res.Evicted != 1 {
		t.Fatalf("second sweep %+v", res)
	}
	if !at.isClosed() {
		t.Fatal("A not terminated")
	}
	// the transport reporting the close later must not repeat the departure
	h.OnDisconnect(a)

	left := bt.ofType(t, core.TypeParticipantLeft)
	if len(left) != 1 || left[0]["participantId"] != "pa" || left[0]["timestamp"] == nil {
		t.Fatalf("B saw departures %v", left)
	}
	if h.Rooms.Size(meeting) != 1 {
		t.Fatalf("room size %d, want 1", h.Rooms.Size(meeting))
	}
	if h.Presence.Resolve(meeting, "pa") != nil {
		t.Fatal("A still present")
	}
}

func TestDuplicateSessionEvictsOlder(t *testing.T) {
	h, _ := newTestHub(t)
	_, bt := join(t, h, "tok-b", "pb")
	old, oldT := join(t, h, "tok-a", "pa")
	bt.reset()

	cur, curT := join(t, h, "tok-a", "pa")
	if oldT.closeCode() != core.CloseReplaced {
		t.Fatalf("old close code %d, want %d", oldT.closeCode(), core.CloseReplaced)
	}
	if !old.Gone() {
		t.Fatal("old connection not torn down")
	}
	if h.Presence.Resolve(meeting, "pa") != cur {
		t.Fatal("presence does not point at the newest connection")
	}
	if h.Rooms.Size(meeting) != 2 {
		t.Fatalf("room size %d, want 2", h.Rooms.Size(meeting))
	}
	if left := bt.ofType(t, core.TypeParticipantLeft); len(left) != 0 {
		t.Fatalf("replacement announced as departure: %v", left)
	}
	if joined := bt.ofType(t, core.TypeParticipantJoined); len(joined) != 1 {
		t.Fatalf("B saw joins %v", joined)
	}
	if curT.isClosed() {
		t.Fatal("new connection closed")
	}
}

func TestRebindToAnotherParticipantDropped(t *testing.T) {
	h, _ := newTestHub(t)
	c, _ := join(t, h, "tok-a", "pa")
	send(t, h, c, `{"type":"participant_joined","participantId":"other"}`)
	if h.Presence.Resolve(meeting, "other") != nil {
		t.Fatal("connection rebound to a second participant")
	}
	if h.Presence.Resolve(meeting, "pa") != c {
		t.Fatal("original presence lost")
	}
}

func TestDisconnectBeforeAnnounceIsSilent(t *testing.T) {
	h, _ := newTestHub(t)
	_, bt := join(t, h, "tok-b", "pb")
	a, _ := connect(t, h, "tok-a")
	h.OnDisconnect(a)
	if left := bt.ofType(t, core.TypeParticipantLeft); len(left) != 0 {
		t.Fatalf("anonymous departure broadcast: %v", left)
	}
	if h.Rooms.Size(meeting) != 1 {
		t.Fatalf("room size %d", h.Rooms.Size(meeting))
	}
}

func TestLastDepartureRemovesRoom(t *testing.T) {
	h, _ := newTestHub(t)
	a, _ := join(t, h, "tok-a", "pa")
	h.OnDisconnect(a)
	if h.Rooms.Len() != 0 {
		t.Fatalf("rooms %v", h.Rooms.List())
	}
	if h.Presence.Len() != 0 {
		t.Fatal("presence left behind")
	}
}

func TestRosterCarriesICEServers(t *testing.T) {
	ice := []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}}
	h, _ := newTestHub(t, WithICEServers(ice))
	_, at := join(t, h, "tok-a", "pa")
	roster := at.ofType(t, core.TypeRosterSync)
	if len(roster) != 1 {
		t.Fatalf("roster %v", roster)
	}
	servers, ok := roster[0]["iceServers"].([]any)
	if !ok || len(servers) != 1 {
		t.Fatalf("iceServers %v", roster[0]["iceServers"])
	}
}

// The newer connection dies before its announce is handled. The older one is
// still replaced, so the room must hear that the participant left.
func TestReplacementLostToDisconnectAnnouncesDeparture(t *testing.T) {
	h, _ := newTestHub(t)
	_, bt := join(t, h, "tok-b", "pb")
	_, oldT := join(t, h, "tok-a", "pa")
	bt.reset()

	fresh, _ := connect(t, h, "tok-a")
	h.OnDisconnect(fresh)
	msg, err := core.Decode([]byte(`{"type":"participant_joined","participantId":"pa"}`))
	if err != nil {
		t.Fatal(err)
	}
	h.announce(fresh, msg)

	if code := oldT.closeCode(); code != core.CloseReplaced {
		t.Fatalf("older session close code %d", code)
	}
	if h.Presence.Resolve(meeting, "pa") != nil {
		t.Fatal("pa still present")
	}
	left := bt.ofType(t, core.TypeParticipantLeft)
	if len(left) != 1 || left[0]["participantId"] != "pa" {
		t.Fatalf("B saw departures %v", left)
	}
	if len(bt.ofType(t, core.TypeParticipantJoined)) != 0 {
		t.Fatal("B saw a join for a dead connection")
	}
}

func TestParticipantLeftCarriesClockTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h, _ := newTestHub(t, WithClock(func() time.Time { return at }))
	a, _ := join(t, h, "tok-a", "pa")
	_, bt := join(t, h, "tok-b", "pb")

	h.OnDisconnect(a)
	left := bt.ofType(t, core.TypeParticipantLeft)
	if len(left) != 1 {
		t.Fatalf("B saw departures %v", left)
	}
	if ts, _ := left[0]["timestamp"].(float64); int64(ts) != at.UnixMilli() {
		t.Fatalf("timestamp = %v, want %d", left[0]["timestamp"], at.UnixMilli())
	}
	if got := a.LastPongAt(); !got.Equal(at) {
		t.Fatalf("last pong = %v, want clock time", got)
	}
}
