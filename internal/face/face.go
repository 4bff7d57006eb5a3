// Package face talks to the face identification service. Recognition itself
// happens out of process; this package only classifies its answers.
package face

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable means no face service is configured or reachable.
	ErrUnavailable = errors.New("face service unavailable")
	ErrBadImage    = errors.New("invalid image")
)

type Status string

const (
	StatusNoFace  Status = "no_face"
	StatusUnknown Status = "unknown"
	StatusOK      Status = "ok"
)

type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Result describes one face. PersonID is set only when Status is ok.
type Result struct {
	Status     Status  `json:"status"`
	PersonID   string  `json:"person_id,omitempty"`
	Confidence float64 `json:"confidence"`
	BBox       *BBox   `json:"bbox,omitempty"`
}

type Identifier interface {
	// Identify returns the best face in image, or StatusNoFace.
	Identify(ctx context.Context, image []byte) (Result, error)
	// IdentifyAll returns every face found, best first.
	IdentifyAll(ctx context.Context, image []byte) ([]Result, error)
	// Enroll teaches the service a new person from one photo.
	Enroll(ctx context.Context, personID string, image []byte) error
}

// Disabled is used when no face service is configured.
type Disabled struct{}

func (Disabled) Identify(context.Context, []byte) (Result, error) {
	return Result{}, ErrUnavailable
}

func (Disabled) IdentifyAll(context.Context, []byte) ([]Result, error) {
	return nil, ErrUnavailable
}

func (Disabled) Enroll(context.Context, string, []byte) error { return ErrUnavailable }

// DecodeImage accepts plain base64 or a data URL.
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.IndexByte(encoded, ','); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadImage)
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return b, nil
}
