package orch

import (
	"github.com/dkeye/meethub/internal/core"
	"github.com/rs/zerolog/log"
)

// toggleMedia stores the new mic/camera state before anybody hears about it.
func (h *Hub) toggleMedia(c *core.Connection, msg *core.Message) {
	pid := c.ParticipantID()
	if pid == "" {
		log.Warn().Str("module", "orch.media").Str("conn", string(c.ID())).Msg("media toggle before announce")
		h.metrics.Dropped("not_announced")
		return
	}
	st, ok := h.Presence.SetMedia(c, pid, msg.Audio, msg.Video)
	if !ok {
		log.Warn().Str("module", "orch.media").Str("conn", string(c.ID())).Str("participant", string(pid)).Msg("media toggle from non owner")
		h.metrics.Dropped("not_owner")
		return
	}
	_ = msg.SetDefault("participantId", pid)
	_ = msg.Set("micOn", st.MicOn)
	_ = msg.Set("camOn", st.CamOn)

	f, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch.media").Msg("encode media toggle")
		return
	}
	if msg.To == "" {
		h.broadcast(c.MeetingID(), core.KindMedia, f, c)
		return
	}
	target := h.Presence.Resolve(c.MeetingID(), msg.To)
	if target == nil || target.Gone() {
		log.Info().Str("module", "orch.media").Str("to", string(msg.To)).Msg("relay target not found")
		h.metrics.Dropped("target_not_found")
		return
	}
	h.unicast(core.KindMedia, target, f)
}
