package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/internal/storage"
	"github.com/krishi-mitra/backend/internal/storage/models"
	"github.com/krishi-mitra/backend/pkg/logger"
)

// Client persists account-holder data. One row per diagnosis; preferences and
// profiles are one row per identity.
type Client struct {
	db *sql.DB
}

var _ storage.Store = (*Client)(nil)

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnoses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		disease_name TEXT NOT NULL,
		symptoms TEXT,
		treatment TEXT,
		prevention TEXT,
		is_healthy INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		image_url TEXT,
		language TEXT,
		details TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_diagnoses_user ON diagnoses(user_id);
	CREATE INDEX IF NOT EXISTS idx_diagnoses_created ON diagnoses(created_at);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT PRIMARY KEY,
		language TEXT NOT NULL DEFAULT 'en',
		theme TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		name TEXT,
		email TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) SaveDiagnosis(ctx context.Context, identity string, rec *models.DiagnosisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	symptomsJSON, _ := json.Marshal(rec.Symptoms)

	query := `
		INSERT INTO diagnoses (id, user_id, disease_name, symptoms, treatment, prevention, is_healthy, confidence, image_url, language, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	isHealthy := 0
	if rec.IsHealthy {
		isHealthy = 1
	}

	_, err := c.db.ExecContext(
		ctx,
		query,
		rec.ID,
		identity,
		rec.DiseaseName,
		string(symptomsJSON),
		rec.Treatment,
		rec.Prevention,
		isHealthy,
		rec.Confidence,
		rec.ImageURL,
		rec.Language,
		string(rec.Details),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save diagnosis: %w", err)
	}

	// Evict everything past the cap, oldest first.
	evict := `
		DELETE FROM diagnoses
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM diagnoses WHERE user_id = ?
			ORDER BY created_at DESC, id LIMIT ?
		)
	`
	if _, err := c.db.ExecContext(ctx, evict, identity, identity, storage.HistoryCap); err != nil {
		return fmt.Errorf("failed to trim diagnosis history: %w", err)
	}

	metrics.HistoryWrites.WithLabelValues("sqlite").Inc()
	logger.Debug("Diagnosis saved", zap.String("diagnosis_id", rec.ID), zap.String("user_id", identity))

	return nil
}

func (c *Client) ListDiagnoses(ctx context.Context, identity string) ([]models.DiagnosisRecord, error) {
	query := `
		SELECT id, disease_name, symptoms, treatment, prevention, is_healthy, confidence, image_url, language, details, created_at
		FROM diagnoses
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, identity, storage.HistoryCap)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	defer rows.Close()

	records := make([]models.DiagnosisRecord, 0)
	for rows.Next() {
		var rec models.DiagnosisRecord
		var symptomsJSON, imageURL, language, details sql.NullString
		var isHealthy int
		var createdAt int64

		err := rows.Scan(
			&rec.ID,
			&rec.DiseaseName,
			&symptomsJSON,
			&rec.Treatment,
			&rec.Prevention,
			&isHealthy,
			&rec.Confidence,
			&imageURL,
			&language,
			&details,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if symptomsJSON.Valid {
			json.Unmarshal([]byte(symptomsJSON.String), &rec.Symptoms)
		}
		if details.Valid && details.String != "" {
			rec.Details = json.RawMessage(details.String)
		}
		rec.ImageURL = imageURL.String
		rec.Language = language.String
		rec.IsHealthy = isHealthy == 1
		rec.CreatedAt = time.Unix(createdAt, 0)

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (c *Client) ClearDiagnoses(ctx context.Context, identity string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM diagnoses WHERE user_id = ?`, identity)
	if err != nil {
		return fmt.Errorf("failed to clear diagnoses: %w", err)
	}

	logger.Info("Diagnosis history cleared", zap.String("user_id", identity))
	return nil
}

func (c *Client) GetPreferences(ctx context.Context, identity string) (models.UserPreferences, error) {
	query := `SELECT language, theme FROM preferences WHERE user_id = ?`

	var prefs models.UserPreferences
	var theme sql.NullString

	err := c.db.QueryRowContext(ctx, query, identity).Scan(&prefs.Language, &theme)
	if err == sql.ErrNoRows {
		return models.DefaultPreferences(), nil
	}
	if err != nil {
		return models.UserPreferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	prefs.Theme = theme.String
	return prefs, nil
}

func (c *Client) SavePreferences(ctx context.Context, identity string, prefs models.UserPreferences) error {
	query := `
		INSERT INTO preferences (user_id, language, theme, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			language = excluded.language,
			theme = excluded.theme,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query, identity, prefs.Language, prefs.Theme, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	return nil
}

func (c *Client) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	query := `SELECT user_id, name, email, created_at, updated_at FROM profiles WHERE user_id = ?`

	var p models.Profile
	var name, email sql.NullString
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, identity).Scan(&p.ID, &name, &email, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		// First sight of this identity: create the row so later updates
		// have something to land on.
		now := time.Now()
		insert := `INSERT INTO profiles (user_id, created_at, updated_at) VALUES (?, ?, ?)`
		if _, err := c.db.ExecContext(ctx, insert, identity, now.Unix(), now.Unix()); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		return &models.Profile{ID: identity, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Name = name.String
	p.Email = email.String
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, identity string, profile *models.Profile) error {
	now := time.Now()

	query := `
		INSERT INTO profiles (user_id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query, identity, profile.Name, profile.Email, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	logger.Debug("Profile updated", zap.String("user_id", identity))
	return nil
}
