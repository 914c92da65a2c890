// Package orch is the session hub: it accepts connections, routes their
// messages and tears their state down again.
package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/meethub/internal/app"
	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/dkeye/meethub/internal/metrics"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Hub struct {
	Rooms    *app.Rooms
	Presence *app.Presence

	verifier  core.TokenVerifier
	validator app.Validator
	policy    app.Policy
	metrics   *metrics.Metrics
	ice       []webrtc.ICEServer
	now       func() time.Time
}

type Option func(*Hub)

func WithPolicy(p app.Policy) Option { return func(h *Hub) { h.policy = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }

// WithICEServers sets the ICE servers handed to participants in the roster sync.
func WithICEServers(s []webrtc.ICEServer) Option { return func(h *Hub) { h.ice = s } }

func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

func NewHub(verifier core.TokenVerifier, validator app.Validator, opts ...Option) *Hub {
	h := &Hub{
		Rooms:     app.NewRooms(),
		Presence:  app.NewPresence(),
		verifier:  verifier,
		validator: validator,
		policy:    app.SimplePolicy{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// OnConnect authenticates a freshly opened transport and places it into its meeting room.
// On failure the transport is closed with the matching code and no Connection is returned.
func (h *Hub) OnConnect(ctx context.Context, t core.Transport, meetingID domain.MeetingID, token string) (*core.Connection, error) {
	id, err := h.Authenticate(ctx, token)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("meeting", string(meetingID)).Msg("token rejected")
		h.refuse(t, core.CloseUnauthorized, "unauthorized")
		return nil, err
	}

	usable, err := h.validator.IsUsable(ctx, meetingID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("meeting", string(meetingID)).Msg("meeting lookup failed")
		h.refuse(t, core.CloseInternal, "store_error")
		return nil, err
	}
	if !usable {
		if f, err := core.Encode(core.NewMeetingInvalid(meetingID)); err == nil {
			_ = t.TrySend(f)
		}
		h.refuse(t, core.CloseMeetingInvalid, "meeting_invalid")
		return nil, core.ErrMeetingInvalid
	}

	c := core.NewConnection(meetingID, *id, t)
	c.MarkAlive(h.now())
	size := h.Rooms.Join(c)
	h.metrics.Connected()
	h.metrics.Rooms(h.Rooms.Len())
	log.Info().
		Str("module", "orch").
		Str("meeting", string(meetingID)).
		Str("conn", string(c.ID())).
		Str("user", string(id.UserID)).
		Int("room_size", size).
		Msg("connection accepted")
	return c, nil
}

// Authenticate verifies a bearer token. Every failure wraps core.ErrUnauthorized.
func (h *Hub) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", core.ErrUnauthorized)
	}
	id, err := h.verifier.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, core.ErrUnauthorized) {
			err = fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
		}
		return nil, err
	}
	return id, nil
}

// IsMember reports whether user has an open connection in meeting m.
func (h *Hub) IsMember(m domain.MeetingID, user domain.UserID) bool {
	for _, c := range h.Rooms.Members(m) {
		if c.Identity().UserID == user && !c.Gone() {
			return true
		}
	}
	return false
}

// RoomsOf lists the rooms user currently has a connection in.
func (h *Hub) RoomsOf(user domain.UserID) []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	for _, r := range h.Rooms.List() {
		if h.IsMember(r.MeetingID, user) {
			out = append(out, r)
		}
	}
	return out
}

func (h *Hub) refuse(t core.Transport, code int, reason string) {
	h.metrics.Refused(reason)
	t.Close(code, reason)
}

// OnDisconnect tears down everything the hub knows about c. Safe to call more than once.
func (h *Hub) OnDisconnect(c *core.Connection) {
	if !c.MarkGone() {
		return
	}
	remaining, _ := h.Rooms.Leave(c)
	h.metrics.Disconnected()
	h.metrics.Rooms(h.Rooms.Len())

	pid := c.ParticipantID()
	owner := pid != "" && h.Presence.Unregister(c, pid)
	log.Info().
		Str("module", "orch").
		Str("meeting", string(c.MeetingID())).
		Str("conn", string(c.ID())).
		Str("participant", string(pid)).
		Int("room_size", remaining).
		Msg("connection gone")
	if !owner || remaining == 0 {
		return
	}
	h.announceLeft(c, pid)
}

// announceLeft tells the rest of the room that pid, last seen on c, is gone.
func (h *Hub) announceLeft(c *core.Connection, pid domain.ParticipantID) {
	left := core.NewParticipantLeft(c.MeetingID(), pid, c.Identity().UserID, c.DisplayName(), h.now().UnixMilli())
	f, err := core.Encode(left)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode participant_left")
		return
	}
	h.broadcast(c.MeetingID(), core.KindLeave, f, nil)
}

// OnPong is wired to both control frame pongs and application pong messages.
func (h *Hub) OnPong(c *core.Connection) {
	c.MarkAlive(h.now())
}

// Roster is the current participant list of a meeting.
func (h *Hub) Roster(m domain.MeetingID) []core.ParticipantDTO {
	return h.Presence.Roster(m, nil)
}

func (h *Hub) broadcast(m domain.MeetingID, kind core.Kind, f core.Frame, exclude *core.Connection) {
	res := h.Rooms.Broadcast(m, f, exclude)
	h.applyPolicy(kind, res.Dropped)
}

func (h *Hub) unicast(kind core.Kind, to *core.Connection, f core.Frame) {
	if err := to.Send(f); errors.Is(err, core.ErrBackpressure) {
		h.applyPolicy(kind, []*core.Connection{to})
	}
}

func (h *Hub) applyPolicy(kind core.Kind, slow []*core.Connection) {
	if h.policy == nil {
		return
	}
	for _, c := range slow {
		switch h.policy.OnBackPressure(kind, c) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(c.ID())).Str("kind", kind.String()).Msg("kicking slow member")
			h.evict(c, core.CloseTooSlow, "too_slow")
		case app.DropFrame:
			h.metrics.Dropped("backpressure")
		case app.NoAction:
		}
	}
}

// evict closes c gracefully with code and runs the disconnect path.
func (h *Hub) evict(c *core.Connection, code int, reason string) {
	h.metrics.Evicted(reason)
	c.Close(code, reason)
	h.OnDisconnect(c)
}

// terminate drops c without a close handshake.
func (h *Hub) terminate(c *core.Connection, reason string) {
	h.metrics.Evicted(reason)
	c.Terminate()
	h.OnDisconnect(c)
}

func (h *Hub) evictInvalid(c *core.Connection) {
	if f, err := core.Encode(core.NewMeetingInvalid(c.MeetingID())); err == nil {
		_ = c.Send(f)
	}
	h.evict(c, core.CloseMeetingInvalid, "meeting_invalid")
}
