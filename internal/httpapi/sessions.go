package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/protocol"
	"github.com/antoniostano/kindred/internal/session"
)

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.visits.StartSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.visits.SessionStatus(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "no_active_session", session.ErrNoActiveSession.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"person_id": chi.URLParam(r, "id"),
		"sessions":  s.visits.History(chi.URLParam(r, "id")),
	})
}

func (s *Server) handleAddChunk(w http.ResponseWriter, r *http.Request) {
	data, err := s.readAudio(w, r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res, err := s.visits.AddChunk(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.visits.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondVisitErr(w, r, err, unsavedVisitResponse{Transcript: res.Transcript, Summary: res.Summary})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.visits.Overview())
}

func (s *Server) handleOneShot(w http.ResponseWriter, r *http.Request) {
	data, err := s.readAudio(w, r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res, err := s.visits.OneShot(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		s.respondVisitErr(w, r, err, unsavedVisitResponse{Transcript: res.Transcript, Summary: res.Summary})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type groupRequest struct {
	Audio     string   `json:"audio"`
	PersonIDs []string `json:"person_ids"`
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes*4/3+4096)
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	data, err := decodeBase64("audio", req.Audio)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res, err := s.visits.Group(r.Context(), req.PersonIDs, data)
	if err != nil {
		s.respondVisitErr(w, r, err, unsavedVisitResponse{
			Transcript: res.Transcript,
			Summary:    res.Summary,
			People:     res.Records,
			Pending:    res.Pending,
		})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

const (
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleSessionWS attaches to the person's open session, starting one when
// none exists. Every client frame gets exactly one event back. Disconnecting
// without "end" leaves the session open.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")
	ctx := r.Context()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.wsEvent("ws_connected")

	send := func(ev protocol.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debug("websocket write failed", zap.String("person_id", personID), zap.Error(err))
			return false
		}
		s.wsMessage("outbound", string(ev.Type))
		return true
	}
	sendErr := func(err error) bool {
		_, code := statusFor(err)
		return send(protocol.Failure(code, err.Error()))
	}
	addChunk := func(data []byte) bool {
		res, err := s.visits.AddChunk(ctx, personID, data)
		if err != nil {
			return sendErr(err)
		}
		return send(protocol.Chunk(res))
	}

	snap, ok := s.visits.SessionStatus(personID)
	if !ok {
		snap, err = s.visits.StartSession(ctx, personID)
		if errors.Is(err, session.ErrSessionConflict) {
			snap, ok = s.visits.SessionStatus(personID)
			if ok {
				err = nil
			}
		}
		if err != nil {
			sendErr(err)
			return
		}
	}

	if !send(protocol.Started(snap)) {
		return
	}

	conn.SetReadLimit(s.cfg.MaxAudioBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		switch msgType {
		case websocket.BinaryMessage:
			s.wsMessage("inbound", "audio")
			if !addChunk(data) {
				return
			}
		case websocket.TextMessage:
			msg, err := protocol.ParseClientMessage(data)
			if err != nil {
				s.wsMessage("inbound", "invalid")
				if !send(protocol.Failure("invalid_client_message", err.Error())) {
					return
				}
				continue
			}
			s.wsMessage("inbound", string(msg.Type))
			if msg.Type == protocol.TypeAudio {
				if !addChunk(msg.Audio) {
					return
				}
				continue
			}

			res, err := s.visits.EndSession(ctx, personID)
			if err != nil {
				_, code := statusFor(err)
				ev := protocol.Failure(code, err.Error())
				if res.Summary != "" {
					ev.Result = &res
				}
				send(ev)
				return
			}
			send(protocol.Ended(res))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(time.Second))
			return
		}
	}
	s.wsEvent("ws_disconnected")
}

func (s *Server) wsEvent(name string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

func (s *Server) wsMessage(direction, kind string) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, kind).Inc()
	}
}
