package storage

import (
	"context"

	"github.com/krishi-mitra/backend/internal/storage/models"
)

// HistoryCap is how many diagnoses one identity keeps; older ones are evicted.
const HistoryCap = 50

// Store is one identity-scoped persistence backend. Account holders get the
// SQLite variant, guests get the local file variant; both honor the same cap
// and ordering rules.
type Store interface {
	SaveDiagnosis(ctx context.Context, identity string, rec *models.DiagnosisRecord) error
	ListDiagnoses(ctx context.Context, identity string) ([]models.DiagnosisRecord, error)
	ClearDiagnoses(ctx context.Context, identity string) error

	GetPreferences(ctx context.Context, identity string) (models.UserPreferences, error)
	SavePreferences(ctx context.Context, identity string, prefs models.UserPreferences) error

	GetProfile(ctx context.Context, identity string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, identity string, profile *models.Profile) error
}

// Selector routes each request to the backend matching its identity kind.
type Selector struct {
	account Store
	guest   Store
}

func NewSelector(account, guest Store) *Selector {
	return &Selector{account: account, guest: guest}
}

// For returns the store to use for this request.
func (s *Selector) For(guest bool) Store {
	if guest {
		return s.guest
	}
	return s.account
}
