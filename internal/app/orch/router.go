package orch

import (
	"context"

	"github.com/dkeye/meethub/internal/core"
	"github.com/rs/zerolog/log"
)

// Route handles one inbound frame from c. It never fails the connection for a bad frame;
// only an unusable meeting closes it.
func (h *Hub) Route(ctx context.Context, c *core.Connection, data []byte) {
	if c.Gone() {
		return
	}
	msg, err := core.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch.router").Str("conn", string(c.ID())).Msg("malformed frame")
		h.metrics.Dropped("malformed")
		return
	}
	kind := msg.Kind()
	h.metrics.Message(kind.String())

	switch kind {
	case core.KindUnknown:
		log.Warn().Str("module", "orch.router").Str("conn", string(c.ID())).Str("type", msg.Type).Msg("unknown message type")
		h.metrics.Dropped("unknown_type")
		return
	case core.KindPong:
		h.OnPong(c)
		return
	case core.KindAnnounce:
	default:
		if !h.revalidate(ctx, c) {
			return
		}
	}

	if err := msg.SetDefault("meetingId", c.MeetingID()); err != nil {
		log.Error().Err(err).Str("module", "orch.router").Msg("inject meetingId")
		return
	}

	switch kind {
	case core.KindAnnounce:
		h.announce(c, msg)
	case core.KindSignal:
		h.relaySignal(c, msg)
	case core.KindMedia:
		h.toggleMedia(c, msg)
	case core.KindChat, core.KindScreenShare:
		h.relayRoom(c, kind, msg, c)
	case core.KindAnnotation:
		exclude := c
		if msg.Echo {
			exclude = nil
		}
		h.relayRoom(c, kind, msg, exclude)
	case core.KindMeetingEnd:
		log.Info().Str("module", "orch.router").Str("meeting", string(c.MeetingID())).Str("conn", string(c.ID())).Msg("meeting end announced")
		h.relayRoom(c, kind, msg, nil)
	case core.KindLeave:
		h.leave(c)
	}
}

func (h *Hub) revalidate(ctx context.Context, c *core.Connection) bool {
	usable, err := h.validator.IsUsable(ctx, c.MeetingID())
	if err != nil {
		log.Error().Err(err).Str("module", "orch.router").Str("meeting", string(c.MeetingID())).Msg("revalidation failed, dropping message")
		h.metrics.Dropped("validator_error")
		return false
	}
	if !usable {
		log.Info().Str("module", "orch.router").Str("meeting", string(c.MeetingID())).Str("conn", string(c.ID())).Msg("meeting no longer usable")
		h.evictInvalid(c)
		return false
	}
	return true
}

func (h *Hub) relayRoom(c *core.Connection, kind core.Kind, msg *core.Message, exclude *core.Connection) {
	f, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch.router").Msg("encode relay")
		return
	}
	h.broadcast(c.MeetingID(), kind, f, exclude)
}

// relaySignal forwards rtc-* negotiation to exactly one participant.
func (h *Hub) relaySignal(c *core.Connection, msg *core.Message) {
	if msg.To == "" {
		log.Warn().Str("module", "orch.router").Str("type", msg.Type).Str("conn", string(c.ID())).Msg("signal without target")
		h.metrics.Dropped("malformed")
		return
	}
	if msg.From == "" {
		pid := c.ParticipantID()
		if pid == "" {
			log.Warn().Str("module", "orch.router").Str("type", msg.Type).Str("conn", string(c.ID())).Msg("signal without sender")
			h.metrics.Dropped("malformed")
			return
		}
		if err := msg.Set("from", pid); err != nil {
			return
		}
	}

	target := h.Presence.Resolve(c.MeetingID(), msg.To)
	if target == nil || target.Gone() {
		log.Info().
			Str("module", "orch.router").
			Str("type", msg.Type).
			Str("meeting", string(c.MeetingID())).
			Str("to", string(msg.To)).
			Msg("relay target not found")
		h.metrics.Dropped("target_not_found")
		return
	}
	f, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch.router").Msg("encode signal")
		return
	}
	h.unicast(core.KindSignal, target, f)
}
