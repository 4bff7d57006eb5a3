// Package protocol defines the websocket messages of a live recording
// session. Binary frames carry audio; everything else is JSON.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/antoniostano/kindred/internal/session"
	"github.com/antoniostano/kindred/internal/visit"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client to server.
	TypeEnd   MessageType = "end"
	TypeAudio MessageType = "audio"

	// Server to client.
	TypeStarted MessageType = "started"
	TypeChunk   MessageType = "chunk"
	TypeEnded   MessageType = "ended"
	TypeError   MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

// Event is the one JSON answer the server sends for every client frame.
type Event struct {
	Type    MessageType        `json:"type"`
	Session *session.Snapshot  `json:"session,omitempty"`
	Chunk   *visit.ChunkResult `json:"chunk,omitempty"`
	Result  *visit.EndResult   `json:"result,omitempty"`
	Code    string             `json:"code,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func Started(snap session.Snapshot) Event { return Event{Type: TypeStarted, Session: &snap} }

func Chunk(res visit.ChunkResult) Event { return Event{Type: TypeChunk, Chunk: &res} }

func Ended(res visit.EndResult) Event { return Event{Type: TypeEnded, Result: &res} }

func Failure(code, message string) Event {
	return Event{Type: TypeError, Code: code, Error: message}
}

// ClientMessage is a text frame from the recorder. Audio is only set for
// TypeAudio, for clients that cannot send binary frames.
type ClientMessage struct {
	Type  MessageType `json:"type"`
	Audio []byte      `json:"-"`
}

type rawClientMessage struct {
	Type  MessageType `json:"type"`
	Audio string      `json:"audio"`
}

func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg rawClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch msg.Type {
	case TypeEnd:
		return ClientMessage{Type: TypeEnd}, nil
	case TypeAudio:
		encoded := strings.TrimSpace(msg.Audio)
		if encoded == "" {
			return ClientMessage{}, errors.New("invalid audio message: empty audio")
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return ClientMessage{}, fmt.Errorf("invalid audio message: %w", err)
		}
		return ClientMessage{Type: TypeAudio, Audio: data}, nil
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnsupportedType, msg.Type)
	}
}
