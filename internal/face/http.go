package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HTTPConfig struct {
	URL string
	// Threshold is the lowest similarity counted as a match.
	Threshold float64
	Timeout   time.Duration
}

// HTTPClient calls an embedding service exposing POST /identify and
// POST /enroll.
type HTTPClient struct {
	baseURL   string
	threshold float64
	client    *http.Client
	log       *zap.Logger
}

func NewHTTPClient(cfg HTTPConfig, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		threshold: cfg.Threshold,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

type identifyRequest struct {
	RequestID string `json:"request_id"`
	Image     string `json:"image"`
}

type identifyResponse struct {
	Faces []struct {
		PersonID string  `json:"person_id"`
		Score    float64 `json:"score"`
		BBox     *BBox   `json:"bbox"`
	} `json:"faces"`
}

type enrollRequest struct {
	PersonID string `json:"person_id"`
	Image    string `json:"image"`
}

func (c *HTTPClient) Identify(ctx context.Context, image []byte) (Result, error) {
	all, err := c.IdentifyAll(ctx, image)
	if err != nil {
		return Result{}, err
	}
	if len(all) == 0 {
		return Result{Status: StatusNoFace}, nil
	}
	return all[0], nil
}

func (c *HTTPClient) IdentifyAll(ctx context.Context, image []byte) ([]Result, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadImage)
	}
	reqID := uuid.NewString()
	var resp identifyResponse
	if err := c.post(ctx, "/identify", identifyRequest{
		RequestID: reqID,
		Image:     base64.StdEncoding.EncodeToString(image),
	}, &resp); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		r := Result{Status: StatusUnknown, Confidence: f.Score, BBox: f.BBox}
		if f.PersonID != "" && f.Score >= c.threshold {
			r.Status = StatusOK
			r.PersonID = f.PersonID
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	c.log.Debug("faces identified", zap.String("request_id", reqID), zap.Int("faces", len(out)))
	return out, nil
}

func (c *HTTPClient) Enroll(ctx context.Context, personID string, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty", ErrBadImage)
	}
	return c.post(ctx, "/enroll", enrollRequest{
		PersonID: personID,
		Image:    base64.StdEncoding.EncodeToString(image),
	}, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("%w: %s", ErrBadImage, strings.TrimSpace(string(msg)))
	case res.StatusCode < 200 || res.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode face response: %w", err)
	}
	return nil
}
