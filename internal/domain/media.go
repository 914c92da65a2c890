package domain

// MediaState is the last known mic/camera state of a participant.
type MediaState struct {
	MicOn bool `json:"micOn"`
	CamOn bool `json:"camOn"`
}

func DefaultMediaState() MediaState {
	return MediaState{MicOn: true, CamOn: true}
}

// Apply overlays the non-nil flags.
func (m MediaState) Apply(audio, video *bool) MediaState {
	if audio != nil {
		m.MicOn = *audio
	}
	if video != nil {
		m.CamOn = *video
	}
	return m
}
