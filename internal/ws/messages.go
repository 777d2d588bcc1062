package ws

import (
	"encoding/json"
	"strings"
)

// inboundFrame is the wire shape of a client frame: {"message": "..."} or
// {"typing": true}. Anything that fails to parse as either is treated as
// raw text message content.
type inboundFrame struct {
	Message *string `json:"message"`
	Typing  *bool   `json:"typing"`
}

type frameKind int

const (
	frameMessage frameKind = iota
	frameTyping
	frameEmpty
)

type frame struct {
	kind   frameKind
	text   string
	typing bool
}

func parseInbound(data []byte) frame {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var in inboundFrame
		if err := json.Unmarshal(data, &in); err == nil {
			switch {
			case in.Message != nil:
				return frame{kind: frameMessage, text: *in.Message}
			case in.Typing != nil:
				return frame{kind: frameTyping, typing: *in.Typing}
			default:
				// A JSON object with no recognised field is ignored.
				return frame{kind: frameEmpty}
			}
		}
	}

	// Plain-text fallback.
	if trimmed == "" {
		return frame{kind: frameEmpty}
	}
	return frame{kind: frameMessage, text: trimmed}
}
