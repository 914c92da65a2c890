package core

import (
	"github.com/dkeye/meethub/internal/domain"
	"github.com/pion/webrtc/v4"
)

type ParticipantLeft struct {
	Type          string               `json:"type"`
	MeetingID     domain.MeetingID     `json:"meetingId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	UserID        domain.UserID        `json:"userId"`
	DisplayName   string               `json:"displayName"`
	Timestamp     int64                `json:"timestamp"`
}

// RosterSync is sent once to a participant right after its announce.
type RosterSync struct {
	Type          string               `json:"type"`
	MeetingID     domain.MeetingID     `json:"meetingId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	Participants  []ParticipantDTO     `json:"participants"`
	ICEServers    []webrtc.ICEServer   `json:"iceServers,omitempty"`
}

type ErrorEvent struct {
	Type      string           `json:"type"`
	MeetingID domain.MeetingID `json:"meetingId,omitempty"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
}

const ErrCodeMeetingInvalid = "meeting_invalid"

func NewParticipantLeft(meetingID domain.MeetingID, pid domain.ParticipantID, uid domain.UserID, name string, ts int64) ParticipantLeft {
	return ParticipantLeft{
		Type:          TypeParticipantLeft,
		MeetingID:     meetingID,
		ParticipantID: pid,
		UserID:        uid,
		DisplayName:   name,
		Timestamp:     ts,
	}
}

func NewMeetingInvalid(meetingID domain.MeetingID) ErrorEvent {
	return ErrorEvent{
		Type:      TypeError,
		MeetingID: meetingID,
		Code:      ErrCodeMeetingInvalid,
		Message:   "meeting is not available",
	}
}
