// Package repository provides persistence for credential records using the
// platform's managed PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akozyreva/cloudkeep/internal/models"
)

// PostgresCredentialRepository implements credential record operations
// against a PostgreSQL database.
type PostgresCredentialRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCredentialRepository creates a repository using the provided
// *sql.DB. db must be a valid connection to a PostgreSQL instance.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{DB: db}
}

// SelectByOwner fetches all credential records belonging to ownerID, newest
// first. Optional fields come back as empty strings when absent.
func (r *PostgresCredentialRepository) SelectByOwner(ctx context.Context, ownerID string) ([]models.CredentialRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, owner_id, platform, username, secret, COALESCE(note, ''), COALESCE(token, ''), created_at
		FROM credentials WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("SelectByOwner: %w", err)
	}
	defer rows.Close()

	var records []models.CredentialRecord
	for rows.Next() {
		var rec models.CredentialRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Platform, &rec.Username, &rec.Secret, &rec.Note, &rec.Token, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Insert stores a new credential record. Empty optional fields are stored as
// NULL.
func (r *PostgresCredentialRepository) Insert(ctx context.Context, rec models.CredentialRecord) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO credentials (id, owner_id, platform, username, secret, note, token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.OwnerID, rec.Platform, rec.Username, rec.Secret, nullable(rec.Note), nullable(rec.Token), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Update replaces every editable field of the record matched by id and owner.
func (r *PostgresCredentialRepository) Update(ctx context.Context, rec models.CredentialRecord) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE credentials
		SET platform = $1, username = $2, secret = $3, note = $4, token = $5
		WHERE id = $6 AND owner_id = $7
	`, rec.Platform, rec.Username, rec.Secret, nullable(rec.Note), nullable(rec.Token), rec.ID, rec.OwnerID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the record matched by id and owner.
func (r *PostgresCredentialRepository) Delete(ctx context.Context, ownerID, id string) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM credentials WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// nullable maps an empty optional field to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
