package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/antoniostano/kindred/internal/validation"
)

// DateLayout is the format of Record.LastVisit.
const DateLayout = "2006-01-02"

var ErrNotFound = errors.New("person not found")

// Record is what the registry remembers about one visitor.
type Record struct {
	PersonID     string `json:"person_id" validate:"required,max=128"`
	Name         string `json:"name" validate:"required,max=200"`
	Relationship string `json:"relationship" validate:"max=200"`
	VisitCount   int    `json:"visit_count" validate:"gte=0"`
	LastVisit    string `json:"last_visit,omitempty" validate:"omitempty,datetime=2006-01-02"`
	LastSummary  string `json:"last_summary"`
}

// NewRecord builds a never-visited record. An empty name defaults to the id.
func NewRecord(personID, name, relationship string) (Record, error) {
	personID = strings.TrimSpace(personID)
	name = strings.TrimSpace(name)
	if name == "" {
		name = personID
	}
	r := Record{
		PersonID:     personID,
		Name:         name,
		Relationship: strings.TrimSpace(relationship),
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (r Record) Validate() error {
	return validation.Struct(r)
}

// Store is the person registry. RecordVisit must apply its whole update
// atomically with respect to other calls for the same person.
type Store interface {
	Get(ctx context.Context, personID string) (Record, error)
	// Ensure creates the person when missing, otherwise fills in only the
	// basics that are still empty.
	Ensure(ctx context.Context, personID, name, relationship string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	// RecordVisit adds one visit dated day, creating the person when unknown.
	// summary replaces the last summary only when non-empty.
	RecordVisit(ctx context.Context, personID, day, summary string) (Record, error)
	Close() error
}
