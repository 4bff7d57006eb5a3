package memory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Updater is the only writer of visit state. Callers invoke ApplyVisit once
// per closed session.
type Updater struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

func NewUpdater(store Store, log *zap.Logger) *Updater {
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{store: store, now: time.Now, log: log}
}

func (u *Updater) Store() Store { return u.store }

// ApplyVisit counts one visit dated today (UTC). An empty summary keeps the
// previous one.
func (u *Updater) ApplyVisit(ctx context.Context, personID, summary string) (Record, error) {
	day := u.now().UTC().Format(DateLayout)
	rec, err := u.store.RecordVisit(ctx, personID, day, summary)
	if err != nil {
		return Record{}, err
	}
	u.log.Info("visit applied",
		zap.String("person_id", personID),
		zap.Int("visit_count", rec.VisitCount),
		zap.Bool("summary_updated", summary != ""))
	return rec, nil
}

// Lookup returns the stored record, or defaults for a person never seen.
func (u *Updater) Lookup(ctx context.Context, personID string) (Record, error) {
	rec, err := u.store.Get(ctx, personID)
	if errors.Is(err, ErrNotFound) {
		return Record{PersonID: personID, Name: personID}, nil
	}
	return rec, err
}
