package modelstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vprate/vprate-go/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for fitted models.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the artifact database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized in SQLite anyway; keep the pool small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates the database schema if it doesn't exist. The full
// artifact lives as JSON in the data column; the indexed columns exist
// only for lookup and listing.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fitted_models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fit_key TEXT NOT NULL,
		status TEXT NOT NULL,
		max_rhat REAL,
		created_at DATETIME NOT NULL,
		fitted_at DATETIME,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fitted_models_fit_key ON fitted_models(fit_key);
	CREATE INDEX IF NOT EXISTS idx_fitted_models_name ON fitted_models(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveModel saves a fitted model artifact to the database.
func (s *SQLiteStore) SaveModel(model *models.FittedModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal fitted model: %w", err)
	}

	var maxRHat sql.NullFloat64
	if model.Diagnostics != nil {
		maxRHat = sql.NullFloat64{Float64: model.Diagnostics.MaxRHat, Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO fitted_models (id, name, fit_key, status, max_rhat, created_at, fitted_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		model.ID,
		model.Name,
		FitKey(&model.Formula, &model.Priors, model.Settings),
		string(model.Status),
		maxRHat,
		model.CreatedAt,
		model.FittedAt,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save fitted model: %w", err)
	}
	return nil
}

// GetModel retrieves a fitted model by ID.
func (s *SQLiteStore) GetModel(id string) (*models.FittedModel, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM fitted_models WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fitted model not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fitted model: %w", err)
	}
	return unmarshalModel(data)
}

// GetModelByKey retrieves the most recent artifact for a fit key.
func (s *SQLiteStore) GetModelByKey(fitKey string) (*models.FittedModel, error) {
	var data string
	query := `SELECT data FROM fitted_models WHERE fit_key = ? ORDER BY created_at DESC LIMIT 1`
	err := s.db.QueryRow(query, fitKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no fitted model for key: %s", fitKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fitted model: %w", err)
	}
	return unmarshalModel(data)
}

// ListModels lists all stored artifacts, newest first.
func (s *SQLiteStore) ListModels() ([]*models.FittedModel, error) {
	rows, err := s.db.Query(`SELECT data FROM fitted_models ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fitted models: %w", err)
	}
	defer rows.Close()

	fitted := make([]*models.FittedModel, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		m, err := unmarshalModel(data)
		if err != nil {
			continue
		}
		fitted = append(fitted, m)
	}
	return fitted, nil
}

// DeleteModel deletes a fitted model artifact.
func (s *SQLiteStore) DeleteModel(id string) error {
	result, err := s.db.Exec(`DELETE FROM fitted_models WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fitted model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fitted model not found: %s", id)
	}
	return nil
}

func unmarshalModel(data string) (*models.FittedModel, error) {
	var m models.FittedModel
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fitted model: %w", err)
	}
	return &m, nil
}
