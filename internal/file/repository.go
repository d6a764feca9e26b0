package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fileColumns = `id, purpose, name, key, size, mime_type, ref_count, visibility, created_at, updated_at`

// Repository is the PostgreSQL MetadataStore.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert stores f and returns the row as written.
func (r *Repository) Insert(ctx context.Context, f *File) (*File, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO files (id, purpose, name, key, size, mime_type, ref_count, visibility)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+fileColumns,
		f.ID, f.Purpose, f.Name, f.Key, f.Size, f.MimeType, f.RefCount, string(f.Visibility),
	)
	out, err := scanFile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConstraint
		}
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return out, nil
}

// GetByID fetches a file by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*File, error) {
	row := r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return f, nil
}

// GetByIDs fetches every file whose id is in ids. Missing ids are skipped.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]*File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get files by ids: %w", err)
	}
	return collectFiles(rows, "get files by ids")
}

// UpdateRefCount adds delta to the counter of one row in a single statement.
func (r *Repository) UpdateRefCount(ctx context.Context, id string, delta int, filter Filter) (*File, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE files SET ref_count = ref_count + $2, updated_at = NOW()
		 WHERE id = $1 AND ($3::text = '' OR purpose = $3)
		 RETURNING `+fileColumns,
		id, delta, filter.Purpose,
	)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update ref count: %w", err)
	}
	return f, nil
}

// UpdateRefCounts adds delta to every matching row in a single statement.
func (r *Repository) UpdateRefCounts(ctx context.Context, ids []string, delta int, filter Filter) ([]*File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`UPDATE files SET ref_count = ref_count + $2, updated_at = NOW()
		 WHERE id = ANY($1) AND ($3::text = '' OR purpose = $3)
		 RETURNING `+fileColumns,
		ids, delta, filter.Purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("update ref counts: %w", err)
	}
	return collectFiles(rows, "update ref counts")
}

// DeleteByID removes one row and returns it.
func (r *Repository) DeleteByID(ctx context.Context, id string) (*File, error) {
	row := r.db.QueryRow(ctx, `DELETE FROM files WHERE id = $1 RETURNING `+fileColumns, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	return f, nil
}

// DeleteByIDs removes every matching row and returns what was removed.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) ([]*File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `DELETE FROM files WHERE id = ANY($1) RETURNING `+fileColumns, ids)
	if err != nil {
		return nil, fmt.Errorf("delete files: %w", err)
	}
	return collectFiles(rows, "delete files")
}

// ExistingKeys reports which of keys are referenced by a row.
func (r *Repository) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	rows, err := r.db.Query(ctx, `SELECT key FROM files WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	for _, k := range existing {
		found[k] = true
	}
	return found, nil
}

func scanFile(row pgx.Row) (*File, error) {
	f := &File{}
	var visibility string
	err := row.Scan(&f.ID, &f.Purpose, &f.Name, &f.Key, &f.Size, &f.MimeType,
		&f.RefCount, &visibility, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Visibility = Visibility(visibility)
	return f, nil
}

func collectFiles(rows pgx.Rows, op string) ([]*File, error) {
	defer rows.Close()
	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
