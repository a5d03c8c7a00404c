package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/repository"
)

// Compile-time check that *DB satisfies the repository contract.
var _ repository.PoemRepository = (*DB)(nil)

const poemColumns = `id, title, content, color_token, image_reference, created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPoem(s scanner) (model.Poem, error) {
	var p model.Poem
	err := s.Scan(
		&p.ID, &p.Title, &p.Content, &p.ColorToken, &p.ImageReference,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Count returns the number of stored poems.
//
// The history view pairs this with a List call to work out how many pages exist.
// The two reads are independent, so a write landing between them can make the
// numbers disagree for one render; the next fetch corrects it.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM poems`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting poems: %w", err)
	}
	return n, nil
}

// Create inserts a new poem into the database.
//
// ID GENERATION WITH xid:
// xid IDs are 20 URL-safe characters and sort by creation time, which gives List a
// stable tie-breaker when two poems share a created_at value.
//
// Timestamps are stored in UTC so the text form of created_at orders correctly.
func (db *DB) Create(ctx context.Context, poem *model.Poem) error {
	poem.ID = xid.New().String()

	now := time.Now().UTC()
	poem.CreatedAt = now
	poem.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO poems (`+poemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		poem.ID,
		poem.Title,
		poem.Content,
		poem.ColorToken,
		poem.ImageReference,
		poem.CreatedAt,
		poem.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating poem: %w", err)
	}

	return nil
}

// GetByID retrieves a single poem by its ID.
// sql.ErrNoRows is translated to apperror.NotFound so the handler can answer 404.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Poem, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+poemColumns+`
		 FROM poems
		 WHERE id = ?`,
		id,
	)

	poem, err := scanPoem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("poem", id)
		}
		return nil, fmt.Errorf("sqlite: getting poem %s: %w", id, err)
	}

	return &poem, nil
}

// List retrieves a range of poems, newest first.
//
// LIMIT/OFFSET PAGINATION:
// Page p of size n is LIMIT n OFFSET (p-1)*n. An offset past the end is not an
// error; it simply returns an empty slice, which is how an out-of-range page renders.
//
// ORDERING:
// created_at DESC puts the newest poem first. id DESC breaks ties so that two
// poems saved in the same instant never swap places between requests.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Poem, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 6
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+poemColumns+`
		 FROM poems
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing poems: %w", err)
	}
	defer rows.Close()

	poems := make([]model.Poem, 0, limit)
	for rows.Next() {
		p, err := scanPoem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning poem row: %w", err)
		}
		poems = append(poems, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating poems: %w", err)
	}

	return poems, nil
}

// Update rewrites the editable fields of an existing poem and refreshes updated_at.
// created_at is never touched.
func (db *DB) Update(ctx context.Context, poem *model.Poem) error {
	poem.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE poems
		 SET title = ?, content = ?, color_token = ?, image_reference = ?, updated_at = ?
		 WHERE id = ?`,
		poem.Title,
		poem.Content,
		poem.ColorToken,
		poem.ImageReference,
		poem.UpdatedAt,
		poem.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating poem %s: %w", poem.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("poem", poem.ID)
	}

	return nil
}

// Delete removes a poem by ID. Same RowsAffected check as Update.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM poems WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting poem %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("poem", id)
	}

	return nil
}
