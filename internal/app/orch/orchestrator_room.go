package orch

import (
	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/rs/zerolog/log"
)

// announce binds the participant identity of c, evicting an older session of the same participant.
func (h *Hub) announce(c *core.Connection, msg *core.Message) {
	pid := msg.ParticipantID
	if err := domain.ValidateParticipantID(pid); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(c.ID())).Msg("bad announce")
		h.metrics.Dropped("malformed")
		return
	}
	name := msg.DisplayName
	if name == "" {
		name = msg.Username
	}
	if !c.Announce(pid, name) {
		log.Warn().
			Str("module", "orch").
			Str("conn", string(c.ID())).
			Str("bound", string(c.ParticipantID())).
			Str("announced", string(pid)).
			Msg("connection already bound to another participant")
		h.metrics.Dropped("rebind")
		return
	}

	m := c.MeetingID()
	prev := h.Presence.Register(c, pid, msg.Audio, msg.Video)
	if prev != nil {
		log.Info().
			Str("module", "orch").
			Str("meeting", string(m)).
			Str("participant", string(pid)).
			Str("old_conn", string(prev.ID())).
			Str("new_conn", string(c.ID())).
			Msg("duplicate session, closing older connection")
		h.evict(prev, core.CloseReplaced, "replaced")
	}
	if c.Gone() {
		// lost a race with the disconnect path, which ran before c owned pid.
		// The room still knows pid through prev, so it has to hear the departure.
		if h.Presence.Unregister(c, pid) && prev != nil {
			h.announceLeft(c, pid)
		}
		return
	}

	roster := core.RosterSync{
		Type:          core.TypeRosterSync,
		MeetingID:     m,
		ParticipantID: pid,
		Participants:  h.Presence.Roster(m, c),
		ICEServers:    h.ice,
	}
	if f, err := core.Encode(roster); err == nil {
		h.unicast(core.KindAnnounce, c, f)
	} else {
		log.Error().Err(err).Str("module", "orch").Msg("encode roster")
	}

	st, _ := h.Presence.Media(m, pid)
	_ = msg.Set("participantId", pid)
	_ = msg.Set("userId", c.Identity().UserID)
	_ = msg.Set("displayName", c.DisplayName())
	_ = msg.Set("micOn", st.MicOn)
	_ = msg.Set("camOn", st.CamOn)
	h.relayRoom(c, core.KindAnnounce, msg, c)
}

// leave is the explicit goodbye: same teardown as a dropped socket, then a normal close.
func (h *Hub) leave(c *core.Connection) {
	log.Info().Str("module", "orch").Str("meeting", string(c.MeetingID())).Str("conn", string(c.ID())).Msg("leave requested")
	h.OnDisconnect(c)
	c.Close(core.CloseNormal, "left")
}
