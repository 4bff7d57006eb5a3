package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/antoniostano/kindred/internal/validation"
)

// Roster lists the people known before any visit, e.g.
//
//	people:
//	  - id: jake
//	    name: Jake
//	    relationship: Son
type Roster struct {
	People []RosterEntry `yaml:"people" validate:"dive"`
}

type RosterEntry struct {
	ID           string `yaml:"id" validate:"required,max=128"`
	Name         string `yaml:"name" validate:"required,max=200"`
	Relationship string `yaml:"relationship" validate:"max=200"`
}

func LoadRoster(path string) (Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Roster{}, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if err := validation.Struct(r); err != nil {
		return Roster{}, fmt.Errorf("invalid roster %s: %w", path, err)
	}
	return r, nil
}

// Seed ensures every roster entry exists in store and returns how many were
// applied.
func (r Roster) Seed(ctx context.Context, store Store) (int, error) {
	for i, p := range r.People {
		if _, err := store.Ensure(ctx, p.ID, p.Name, p.Relationship); err != nil {
			return i, fmt.Errorf("seed %s: %w", p.ID, err)
		}
	}
	return len(r.People), nil
}
