package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/antoniostano/kindred/internal/face"
	"github.com/antoniostano/kindred/internal/memory"
	"github.com/antoniostano/kindred/internal/validation"
	"github.com/antoniostano/kindred/internal/visit"
)

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.people.List(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if people == nil {
		people = []memory.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"people": people})
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	rec, err := s.people.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type registerRequest struct {
	ID           string `json:"id" validate:"omitempty,max=128,excludesall=/\\"`
	Name         string `json:"name" validate:"required,max=200"`
	Relationship string `json:"relationship" validate:"max=200"`
	// Image, when present, is enrolled with the face service.
	Image string `json:"image"`
}

type registerResponse struct {
	PersonID string        `json:"person_id"`
	Person   memory.Record `json:"person"`
	Enrolled bool          `json:"face_enrolled"`
}

func (s *Server) handleRegisterPerson(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.ID = strings.TrimSpace(req.ID)
	if err := validation.Struct(req); err != nil {
		s.respondErr(w, r, fmt.Errorf("%w: %v", visit.ErrInvalidInput, err))
		return
	}
	if req.ID == "" {
		req.ID = newPersonID(req.Name)
	}

	enrolled := false
	if strings.TrimSpace(req.Image) != "" {
		img, err := face.DecodeImage(req.Image)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		if err := s.faces.Enroll(r.Context(), req.ID, img); err != nil {
			s.respondErr(w, r, err)
			return
		}
		enrolled = true
	}

	rec, err := s.people.Ensure(r.Context(), req.ID, req.Name, req.Relationship)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, registerResponse{PersonID: rec.PersonID, Person: rec, Enrolled: enrolled})
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// newPersonID derives a readable unique id, e.g. "aunt_may_1f3a9c2e".
func newPersonID(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		slug = "person"
	}
	return slug + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

type identifyRequest struct {
	Image string `json:"image" validate:"required"`
}

type identifyResponse struct {
	Status     face.Status    `json:"status"`
	Confidence float64        `json:"confidence,omitempty"`
	BBox       *face.BBox     `json:"bbox,omitempty"`
	Person     *memory.Record `json:"person,omitempty"`
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	img, err := s.readImage(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res, err := s.faces.Identify(r.Context(), img)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	out, err := s.describeFace(r.Context(), res)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleIdentifyAll(w http.ResponseWriter, r *http.Request) {
	img, err := s.readImage(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	results, err := s.faces.IdentifyAll(r.Context(), img)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	status := face.StatusOK
	if len(results) == 0 {
		status = face.StatusNoFace
	}
	people := make([]identifyResponse, 0, len(results))
	for _, res := range results {
		out, err := s.describeFace(r.Context(), res)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		people = append(people, out)
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": status, "people": people})
}

func (s *Server) readImage(r *http.Request) ([]byte, error) {
	var req identifyRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", visit.ErrInvalidInput, err)
	}
	return face.DecodeImage(req.Image)
}

// describeFace attaches the memory record of a recognized face. A face the
// registry has never seen gets default basics.
func (s *Server) describeFace(ctx context.Context, res face.Result) (identifyResponse, error) {
	out := identifyResponse{Status: res.Status, Confidence: res.Confidence, BBox: res.BBox}
	if res.Status != face.StatusOK {
		return out, nil
	}
	rec, err := s.people.Get(ctx, res.PersonID)
	switch {
	case errors.Is(err, memory.ErrNotFound):
		rec = memory.Record{PersonID: res.PersonID, Name: res.PersonID}
	case err != nil:
		return identifyResponse{}, err
	}
	out.Person = &rec
	return out, nil
}
