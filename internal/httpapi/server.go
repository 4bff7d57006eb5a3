package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/config"
	"github.com/antoniostano/kindred/internal/face"
	"github.com/antoniostano/kindred/internal/memory"
	"github.com/antoniostano/kindred/internal/observability"
	"github.com/antoniostano/kindred/internal/session"
	"github.com/antoniostano/kindred/internal/visit"
	"github.com/antoniostano/kindred/internal/voice"
)

type Deps struct {
	Visits  *visit.Service
	People  memory.Store
	Faces   face.Identifier
	Metrics *observability.Metrics
	Logger  *zap.Logger
	// Providers is reported by /readyz, e.g. {"transcription": "whisper-cli"}.
	Providers map[string]string
}

type Server struct {
	cfg       config.Config
	visits    *visit.Service
	people    memory.Store
	faces     face.Identifier
	metrics   *observability.Metrics
	log       *zap.Logger
	providers map[string]string
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	faces := d.Faces
	if faces == nil {
		faces = face.Disabled{}
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 25 << 20
	}
	return &Server{
		cfg:       cfg,
		visits:    d.Visits,
		people:    d.People,
		faces:     faces,
		metrics:   d.Metrics,
		log:       log,
		providers: d.Providers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a recording session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/people", s.handleListPeople)
		r.Post("/people", s.handleRegisterPerson)
		r.Route("/people/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPerson)
			r.Post("/session", s.handleStartSession)
			r.Get("/session", s.handleSessionStatus)
			r.Get("/session/history", s.handleSessionHistory)
			r.Post("/session/chunks", s.handleAddChunk)
			r.Post("/session/end", s.handleEndSession)
			r.Get("/session/ws", s.handleSessionWS)
			r.Post("/conversation", s.handleOneShot)
		})
		r.Get("/sessions", s.handleOverview)
		r.Post("/conversations/group", s.handleGroup)
		r.Post("/identify", s.handleIdentify)
		r.Post("/identify/all", s.handleIdentifyAll)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.people.List(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"providers":       s.providers,
		"active_sessions": len(s.visits.ActiveSessions()),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// unsavedVisitResponse is returned when a conversation was transcribed and
// summarized but the registry write failed. The session is already closed,
// so this body is the only copy of the visit.
type unsavedVisitResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Transcript string `json:"full_transcript"`
	Summary    string `json:"summary"`
	// Group visits only: participants written before the failure, and
	// those still to write.
	People  []memory.Record `json:"people,omitempty"`
	Pending []string        `json:"pending,omitempty"`
}

var (
	errEmptyBody     = errors.New("empty body")
	errAudioTooLarge = errors.New("audio too large")
)

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errAudioTooLarge
		}
		return err
	}
	return nil
}

// readAudio accepts a multipart form with an "audio" file or the raw
// recording as the request body.
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes)
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(mediaType, "multipart/") {
		data, err = readMultipartAudio(r, s.cfg.MaxAudioBytes)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errAudioTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", visit.ErrInvalidInput, err)
	}
	return data, nil
}

func readMultipartAudio(r *http.Request, limit int64) ([]byte, error) {
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()
	f, _, err := r.FormFile("audio")
	if err != nil {
		return nil, fmt.Errorf("missing audio file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func decodeBase64(field, encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.IndexByte(encoded, ','); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64: %v", visit.ErrInvalidInput, field, err)
	}
	return b, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusFor maps pipeline errors to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errAudioTooLarge):
		return http.StatusRequestEntityTooLarge, "audio_too_large"
	case errors.Is(err, visit.ErrInvalidInput), errors.Is(err, errEmptyBody):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, face.ErrBadImage):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, session.ErrNoActiveSession):
		return http.StatusNotFound, "no_active_session"
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound, "person_not_found"
	case errors.Is(err, session.ErrSessionConflict):
		return http.StatusConflict, "session_conflict"
	case errors.Is(err, voice.ErrTranscriptionFailure):
		return http.StatusBadGateway, "transcription_failed"
	case errors.Is(err, face.ErrUnavailable):
		return http.StatusServiceUnavailable, "face_service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondVisitErr reports err, keeping the produced transcript and summary
// when the pipeline got that far.
func (s *Server) respondVisitErr(w http.ResponseWriter, r *http.Request, err error, body unsavedVisitResponse) {
	if body.Summary == "" {
		s.respondErr(w, r, err)
		return
	}
	status, code := statusFor(err)
	s.log.Error("visit not saved",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	body.Error, body.Code = err.Error(), code
	respondJSON(w, status, body)
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	respondError(w, status, code, err.Error())
}
