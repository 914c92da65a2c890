package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/rs/zerolog/log"
)

type presenceKey struct {
	meeting domain.MeetingID
	pid     domain.ParticipantID
}

// Presence maps a declared participant to its single active connection,
// and keeps the participant's media state next to it.
type Presence struct {
	mu    sync.RWMutex
	conns map[presenceKey]*core.Connection
	media map[presenceKey]domain.MediaState
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[presenceKey]*core.Connection),
		media: make(map[presenceKey]domain.MediaState),
	}
}

// Register makes c the owner of (meeting, pid) and returns the connection it replaced, if any.
// Media state is kept when present; otherwise it starts from the defaults overlaid with audio/video.
func (p *Presence) Register(c *core.Connection, pid domain.ParticipantID, audio, video *bool) (prev *core.Connection) {
	k := presenceKey{meeting: c.MeetingID(), pid: pid}
	p.mu.Lock()
	defer p.mu.Unlock()
	prev = p.conns[k]
	p.conns[k] = c
	st, ok := p.media[k]
	if !ok {
		st = domain.DefaultMediaState()
	}
	p.media[k] = st.Apply(audio, video)
	if prev == c {
		prev = nil
	}
	log.Info().Str("module", "app.presence").Str("meeting", string(k.meeting)).Str("participant", string(pid)).Str("conn", string(c.ID())).Bool("replaced", prev != nil).Msg("presence registered")
	return prev
}

func (p *Presence) Resolve(m domain.MeetingID, pid domain.ParticipantID) *core.Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns[presenceKey{meeting: m, pid: pid}]
}

// Unregister drops the presence and media entries only when c still owns them.
func (p *Presence) Unregister(c *core.Connection, pid domain.ParticipantID) bool {
	k := presenceKey{meeting: c.MeetingID(), pid: pid}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[k] != c {
		return false
	}
	delete(p.conns, k)
	delete(p.media, k)
	log.Info().Str("module", "app.presence").Str("meeting", string(k.meeting)).Str("participant", string(pid)).Msg("presence removed")
	return true
}

// SetMedia applies a toggle coming from the connection that owns pid.
func (p *Presence) SetMedia(c *core.Connection, pid domain.ParticipantID, audio, video *bool) (domain.MediaState, bool) {
	k := presenceKey{meeting: c.MeetingID(), pid: pid}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[k] != c {
		return domain.MediaState{}, false
	}
	st, ok := p.media[k]
	if !ok {
		st = domain.DefaultMediaState()
	}
	st = st.Apply(audio, video)
	p.media[k] = st
	return st, true
}

func (p *Presence) Media(m domain.MeetingID, pid domain.ParticipantID) (domain.MediaState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.media[presenceKey{meeting: m, pid: pid}]
	return st, ok
}

// Roster lists the participants of a meeting, skipping the given connection.
func (p *Presence) Roster(m domain.MeetingID, exclude *core.Connection) []core.ParticipantDTO {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.ParticipantDTO, 0)
	for k, c := range p.conns {
		if k.meeting != m || c == exclude {
			continue
		}
		out = append(out, core.ParticipantDTO{
			ParticipantID: k.pid,
			UserID:        c.Identity().UserID,
			DisplayName:   c.DisplayName(),
			MediaState:    p.media[k],
		})
	}
	slices.SortFunc(out, func(a, b core.ParticipantDTO) int {
		return strings.Compare(string(a.ParticipantID), string(b.ParticipantID))
	})
	return out
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}
