// Package rtc prepares the WebRTC settings handed to browsers.
// Media itself never flows through the hub.
package rtc

import (
	"fmt"

	"github.com/dkeye/meethub/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// ICEServers validates the configured servers. An empty list yields the public STUN default.
func ICEServers(cfg []config.ICEServerConfig) ([]webrtc.ICEServer, error) {
	if len(cfg) == 0 {
		return defaultICEServers, nil
	}
	out := make([]webrtc.ICEServer, 0, len(cfg))
	for i, s := range cfg {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d: no urls", i)
		}
		turn := false
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice server %d: %q: %w", i, raw, err)
			}
			if u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS {
				turn = true
			}
		}
		if turn && (s.Username == "" || s.Credential == "") {
			return nil, fmt.Errorf("ice server %d: turn requires username and credential", i)
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return out, nil
}
