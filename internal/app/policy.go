package app

import "github.com/dkeye/meethub/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(kind core.Kind, member *core.Connection) BackpressureAction
}

// SimplePolicy sheds lossy traffic and kicks members that cannot keep up with anything else.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(kind core.Kind, member *core.Connection) BackpressureAction {
	switch kind {
	case core.KindScreenShare, core.KindAnnotation:
		return DropFrame
	default:
		return KickMember
	}
}
