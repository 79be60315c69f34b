package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/qrtune/internal/links"
	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/shared"
)

const scanColumns = `id, sequence, raw, kind, subtype, media_id, client, created_at, updated_at, deleted_at`

// ScanRepository implements models.Repository[*models.Scan] for the scan history.
//
// Handles scan CRUD operations with soft delete support.
type ScanRepository struct {
	db *sql.DB
}

// NewScanRepository creates a new ScanRepository with the given database connection
func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create inserts a new scan into the database with generated ID and sequence
func (r *ScanRepository) Create(scan *models.Scan) error {
	if err := scan.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "scans")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO scans (id, sequence, raw, kind, subtype, media_id, client, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		scan.Raw(),
		string(scan.Kind()),
		string(scan.Subtype()),
		scan.MediaID(),
		scan.Client(),
		scan.CreatedAt(),
		scan.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	scan.SetID(id)
	scan.SetSequence(sequence)
	return nil
}

// Get retrieves a scan by ID, excluding soft-deleted scans
func (r *ScanRepository) Get(id string) (*models.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = ? AND deleted_at IS NULL`

	scan, err := scanRow(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrScanNotFound, id)
	}
	return scan, err
}

// Update rewrites the scan's text and classification
func (r *ScanRepository) Update(scan *models.Scan) error {
	if err := scan.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()

	query := `
		UPDATE scans
		SET raw = ?, kind = ?, subtype = ?, media_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		scan.Raw(),
		string(scan.Kind()),
		string(scan.Subtype()),
		scan.MediaID(),
		now,
		scan.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}

	if err := expectRows(result, scan.ID()); err != nil {
		return err
	}

	scan.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a scan by ID
func (r *ScanRepository) Delete(id string) error {
	query := `UPDATE scans SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return expectRows(result, id)
}

// Clear soft-deletes every scan and returns how many were removed
func (r *ScanRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`UPDATE scans SET deleted_at = ? WHERE deleted_at IS NULL`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear scans: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// List retrieves all scans matching the given criteria, oldest first, excluding soft-deleted scans.
//
// Supported criteria: "kind" (string), "subtype" (string), "limit" (int).
func (r *ScanRepository) List(criteria map[string]any) ([]*models.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE deleted_at IS NULL`
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	if subtype, ok := criteria["subtype"].(string); ok && subtype != "" {
		query += " AND subtype = ?"
		args = append(args, subtype)
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// Recent returns up to limit scans, newest first
func (r *ScanRepository) Recent(limit int) ([]*models.Scan, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", shared.ErrInvalidArgument)
	}

	query := `SELECT ` + scanColumns + ` FROM scans WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT ?`
	return r.query(query, limit)
}

// Count returns the number of scans that have not been deleted
func (r *ScanRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM scans WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return n, nil
}

func (r *ScanRepository) query(query string, args ...any) ([]*models.Scan, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := []*models.Scan{}
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return scans, nil
}

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow scans a row into a [models.Scan]
func scanRow(row rowScanner) (*models.Scan, error) {
	var (
		id        string
		sequence  int
		raw       string
		kind      string
		subtype   string
		mediaID   string
		client    string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &raw, &kind, &subtype, &mediaID, &client, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreScan(id, sequence, raw, links.Kind(kind), links.Subtype(subtype), mediaID, client, createdAt, updatedAt, deleted), nil
}

func expectRows(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrScanNotFound, id)
	}
	return nil
}
