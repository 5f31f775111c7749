package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/internal/storage"
	"github.com/krishi-mitra/backend/internal/storage/models"
	"github.com/krishi-mitra/backend/pkg/logger"
)

const (
	migrationMarker  = "krishi_mitra_migration_version"
	migrationVersion = "1.0.0"

	legacyDiagnosesFile   = "diagnoses.json"
	legacyPreferencesFile = "user_preferences.json"
	legacyIdentity        = "guest_legacy"
)

// Store keeps guest data in one JSON file per identity under dataDir.
// Writes are whole-file read-modify-write under a single lock; guest traffic
// is light enough that per-identity locking is not worth it.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

var _ storage.Store = (*Store)(nil)

type bucket struct {
	Diagnoses   []models.DiagnosisRecord `json:"diagnoses"`
	Preferences *models.UserPreferences  `json:"preferences,omitempty"`
	Profile     *models.Profile          `json:"profile,omitempty"`
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create guest data directory: %w", err)
	}

	s := &Store{dataDir: dataDir}
	if err := s.migrateLegacy(); err != nil {
		return nil, err
	}

	logger.Info("Guest store initialized", zap.String("path", dataDir))
	return s, nil
}

// NewGuestID mints the identity handed to clients that have no session yet.
func NewGuestID() string {
	return "guest_" + uuid.New().String()
}

// migrateLegacy folds the old single-user files into the per-identity layout.
// It runs at most once; the marker file records the completed version.
func (s *Store) migrateLegacy() error {
	markerPath := filepath.Join(s.dataDir, migrationMarker)
	if data, err := os.ReadFile(markerPath); err == nil && strings.TrimSpace(string(data)) == migrationVersion {
		return nil
	}

	var b bucket

	if data, err := os.ReadFile(filepath.Join(s.dataDir, legacyDiagnosesFile)); err == nil {
		if err := json.Unmarshal(data, &b.Diagnoses); err != nil {
			logger.Warn("Skipping unreadable legacy diagnoses file", zap.Error(err))
			b.Diagnoses = nil
		}
	}
	if data, err := os.ReadFile(filepath.Join(s.dataDir, legacyPreferencesFile)); err == nil {
		var prefs models.UserPreferences
		if err := json.Unmarshal(data, &prefs); err == nil {
			b.Preferences = &prefs
		} else {
			logger.Warn("Skipping unreadable legacy preferences file", zap.Error(err))
		}
	}

	if len(b.Diagnoses) > 0 || b.Preferences != nil {
		if len(b.Diagnoses) > storage.HistoryCap {
			b.Diagnoses = b.Diagnoses[:storage.HistoryCap]
		}
		if err := s.write(legacyIdentity, &b); err != nil {
			return fmt.Errorf("failed to migrate legacy guest data: %w", err)
		}
		logger.Info("Migrated legacy guest data",
			zap.Int("diagnoses", len(b.Diagnoses)),
			zap.String("identity", legacyIdentity),
		)
	}

	if err := os.WriteFile(markerPath, []byte(migrationVersion), 0o644); err != nil {
		return fmt.Errorf("failed to write migration marker: %w", err)
	}

	return nil
}

func (s *Store) path(identity string) string {
	// Identities are server-minted but sanitize anyway.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, identity)
	return filepath.Join(s.dataDir, safe+".json")
}

func (s *Store) read(identity string) (*bucket, error) {
	data, err := os.ReadFile(s.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return &bucket{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read guest data: %w", err)
	}

	var b bucket
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode guest data: %w", err)
	}
	return &b, nil
}

func (s *Store) write(identity string, b *bucket) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode guest data: %w", err)
	}

	path := s.path(identity)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write guest data: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace guest data: %w", err)
	}
	return nil
}

func (s *Store) SaveDiagnosis(ctx context.Context, identity string, rec *models.DiagnosisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	// Newest first, capped.
	b.Diagnoses = append([]models.DiagnosisRecord{*rec}, b.Diagnoses...)
	if len(b.Diagnoses) > storage.HistoryCap {
		b.Diagnoses = b.Diagnoses[:storage.HistoryCap]
	}

	if err := s.write(identity, b); err != nil {
		return err
	}

	metrics.HistoryWrites.WithLabelValues("local").Inc()
	return nil
}

func (s *Store) ListDiagnoses(ctx context.Context, identity string) ([]models.DiagnosisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return nil, err
	}
	if b.Diagnoses == nil {
		return []models.DiagnosisRecord{}, nil
	}
	return b.Diagnoses, nil
}

func (s *Store) ClearDiagnoses(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return err
	}
	b.Diagnoses = nil
	return s.write(identity, b)
}

func (s *Store) GetPreferences(ctx context.Context, identity string) (models.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return models.UserPreferences{}, err
	}
	if b.Preferences == nil {
		return models.DefaultPreferences(), nil
	}
	return *b.Preferences, nil
}

func (s *Store) SavePreferences(ctx context.Context, identity string, prefs models.UserPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return err
	}
	b.Preferences = &prefs
	return s.write(identity, b)
}

func (s *Store) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return nil, err
	}
	if b.Profile == nil {
		now := time.Now()
		b.Profile = &models.Profile{ID: identity, Guest: true, CreatedAt: now, UpdatedAt: now}
		if err := s.write(identity, b); err != nil {
			return nil, err
		}
	}
	return b.Profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, identity string, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read(identity)
	if err != nil {
		return err
	}

	now := time.Now()
	created := now
	if b.Profile != nil && !b.Profile.CreatedAt.IsZero() {
		created = b.Profile.CreatedAt
	}
	b.Profile = &models.Profile{
		ID:        identity,
		Name:      profile.Name,
		Email:     profile.Email,
		Guest:     true,
		CreatedAt: created,
		UpdatedAt: now,
	}
	return s.write(identity, b)
}
