package core

import (
	"fmt"
	"strings"

	"github.com/dkeye/meethub/internal/domain"
	"github.com/goccy/go-json"
)

// Kind is the closed set of message families the router understands.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAnnounce
	KindSignal
	KindMedia
	KindChat
	KindScreenShare
	KindAnnotation
	KindMeetingEnd
	KindLeave
	KindPong
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindAnnounce:    "announce",
	KindSignal:      "signal",
	KindMedia:       "media",
	KindChat:        "chat",
	KindScreenShare: "screen_share",
	KindAnnotation:  "annotation",
	KindMeetingEnd:  "meeting_end",
	KindLeave:       "leave",
	KindPong:        "pong",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

const (
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeRosterSync        = "roster_sync"
	TypeMediaToggle       = "media-toggle"
	TypeChatMessage       = "chat_message"
	TypeTypingStart       = "typing_start"
	TypeTypingStop        = "typing_stop"
	TypeMeetingEnd        = "meeting-end"
	TypeLeaveRoom         = "leave-room"
	TypePong              = "pong"
	TypeError             = "error"

	TypeScreenShareStart           = "screen-share-start"
	TypeScreenShareStream          = "screen-share-stream"
	TypeScreenShareStop            = "screen-share-stop"
	TypeScreenShareProducerCreated = "screen-share-producer-created"
	TypeScreenShareProducerClosed  = "screen-share-producer-closed"

	signalPrefix     = "rtc-"
	annotationPrefix = "anno:"
)

func Classify(typ string) Kind {
	switch typ {
	case TypeParticipantJoined:
		return KindAnnounce
	case TypeMediaToggle:
		return KindMedia
	case TypeChatMessage, TypeTypingStart, TypeTypingStop:
		return KindChat
	case TypeScreenShareStart, TypeScreenShareStream, TypeScreenShareStop,
		TypeScreenShareProducerCreated, TypeScreenShareProducerClosed:
		return KindScreenShare
	case TypeMeetingEnd:
		return KindMeetingEnd
	case TypeLeaveRoom:
		return KindLeave
	case TypePong:
		return KindPong
	}
	switch {
	case strings.HasPrefix(typ, signalPrefix) && len(typ) > len(signalPrefix):
		return KindSignal
	case strings.HasPrefix(typ, annotationPrefix) && len(typ) > len(annotationPrefix):
		return KindAnnotation
	}
	return KindUnknown
}

// Message is an inbound frame. The typed fields are the ones the router reads;
// everything else is kept raw so relays stay verbatim.
type Message struct {
	Type          string               `json:"type"`
	MeetingID     domain.MeetingID     `json:"meetingId,omitempty"`
	ParticipantID domain.ParticipantID `json:"participantId,omitempty"`
	DisplayName   string               `json:"displayName,omitempty"`
	Username      string               `json:"username,omitempty"`
	To            domain.ParticipantID `json:"to,omitempty"`
	From          domain.ParticipantID `json:"from,omitempty"`
	Audio         *bool                `json:"audio,omitempty"`
	Video         *bool                `json:"video,omitempty"`
	Echo          bool                 `json:"echo,omitempty"`

	fields map[string]json.RawMessage
}

func Decode(data []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	m.fields = fields
	return &m, nil
}

func (m *Message) Kind() Kind { return Classify(m.Type) }

func (m *Message) Has(key string) bool {
	_, ok := m.fields[key]
	return ok
}

// Set adds or replaces a top level field of the relayed frame.
func (m *Message) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if m.fields == nil {
		m.fields = make(map[string]json.RawMessage)
	}
	m.fields[key] = b
	return nil
}

// SetDefault sets key only when the client left it out.
func (m *Message) SetDefault(key string, v any) error {
	if m.Has(key) {
		return nil
	}
	return m.Set(key, v)
}

// Encode renders the frame as relayed, including enrichments.
func (m *Message) Encode() (Frame, error) {
	b, err := json.Marshal(m.fields)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Encode marshals a hub generated event.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
