// Package sqlite provides an embedded file.MetadataStore on GORM and a pure-Go
// SQLite driver, for single-node deployments and local development.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/eyueldk/edkstack-files/internal/file"
)

// fileRow mirrors the files table of the PostgreSQL migration.
type fileRow struct {
	ID         string    `gorm:"primaryKey;type:text"`
	Purpose    string    `gorm:"type:text;not null"`
	Name       *string   `gorm:"type:text"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:files_key_idx"`
	Size       int64     `gorm:"not null"`
	MimeType   string    `gorm:"type:text;not null;default:application/octet-stream"`
	RefCount   int       `gorm:"not null;default:0"`
	Visibility string    `gorm:"type:text;not null;default:private"`
	CreatedAt  time.Time `gorm:"not null;index:files_created_at_idx"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (fileRow) TableName() string { return "files" }

func (r *fileRow) toFile() *file.File {
	return &file.File{
		ID:         r.ID,
		Purpose:    r.Purpose,
		Name:       r.Name,
		Key:        r.Key,
		Size:       r.Size,
		MimeType:   r.MimeType,
		RefCount:   r.RefCount,
		Visibility: file.Visibility(r.Visibility),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toFiles(rows []fileRow) []*file.File {
	out := make([]*file.File, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toFile())
	}
	return out
}

// Store implements file.MetadataStore.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the files table.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One writer keeps every statement serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&fileRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	log.Info("sqlite metadata store ready", zap.String("path", path))
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Insert(ctx context.Context, f *file.File) (*file.File, error) {
	now := time.Now().UTC()
	row := fileRow{
		ID:         f.ID,
		Purpose:    f.Purpose,
		Name:       f.Name,
		Key:        f.Key,
		Size:       f.Size,
		MimeType:   f.MimeType,
		RefCount:   f.RefCount,
		Visibility: string(f.Visibility),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, file.ErrConstraint
		}
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return row.toFile(), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*file.File, error) {
	var row fileRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, file.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return row.toFile(), nil
}

func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]*file.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []fileRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get files by ids: %w", err)
	}
	return toFiles(rows), nil
}

// UpdateRefCount runs one UPDATE ... RETURNING with a column expression, so
// concurrent callers never lose an increment.
func (s *Store) UpdateRefCount(ctx context.Context, id string, delta int, filter file.Filter) (*file.File, error) {
	rows, err := s.updateRefCounts(ctx, s.db.WithContext(ctx).Where("id = ?", id), delta, filter)
	if err != nil {
		return nil, fmt.Errorf("update ref count: %w", err)
	}
	if len(rows) == 0 {
		return nil, file.ErrNotFound
	}
	return rows[0].toFile(), nil
}

func (s *Store) UpdateRefCounts(ctx context.Context, ids []string, delta int, filter file.Filter) ([]*file.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.updateRefCounts(ctx, s.db.WithContext(ctx).Where("id IN ?", ids), delta, filter)
	if err != nil {
		return nil, fmt.Errorf("update ref counts: %w", err)
	}
	return toFiles(rows), nil
}

func (s *Store) updateRefCounts(_ context.Context, q *gorm.DB, delta int, filter file.Filter) ([]fileRow, error) {
	if filter.Purpose != "" {
		q = q.Where("purpose = ?", filter.Purpose)
	}
	var rows []fileRow
	err := q.Model(&rows).Clauses(clause.Returning{}).Updates(map[string]interface{}{
		"ref_count":  gorm.Expr("ref_count + ?", delta),
		"updated_at": time.Now().UTC(),
	}).Error
	return rows, err
}

func (s *Store) DeleteByID(ctx context.Context, id string) (*file.File, error) {
	var rows []fileRow
	err := s.db.WithContext(ctx).Clauses(clause.Returning{}).Where("id = ?", id).Delete(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	if len(rows) == 0 {
		return nil, file.ErrNotFound
	}
	return rows[0].toFile(), nil
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []string) ([]*file.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []fileRow
	err := s.db.WithContext(ctx).Clauses(clause.Returning{}).Where("id IN ?", ids).Delete(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("delete files: %w", err)
	}
	return toFiles(rows), nil
}

func (s *Store) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	var existing []string
	err := s.db.WithContext(ctx).Model(&fileRow{}).Where("`key` IN ?", keys).Pluck("key", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("existing keys: %w", err)
	}
	for _, k := range existing {
		found[k] = true
	}
	return found, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrPrimaryKeyRequired) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ file.MetadataStore = (*Store)(nil)
