package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/storage/migrations"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteRepository implements Repository using a SQLite database.
type SQLiteRepository struct {
	db            *sqlx.DB
	path          string
	schemaVersion uint
	clock         model.Clock
	notifier      *notifier
}

// SQLiteParams holds parameters for opening a SQLiteRepository.
type SQLiteParams struct {
	Path  string      // file path, or ":memory:"
	Clock model.Clock // optional, RealClock if nil
}

// bookmarkRow is the database shape of a bookmark.
type bookmarkRow struct {
	ID           string         `db:"id"`
	URL          string         `db:"url"`
	Title        sql.NullString `db:"title"`
	Description  sql.NullString `db:"description"`
	ThumbnailURL sql.NullString `db:"thumbnail_url"`
	Category     sql.NullString `db:"category"`
	TagsJSON     string         `db:"tags_json"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
	IsArchived   int64          `db:"is_archived"`
}

const selectColumns = `
	SELECT id, url, title, description, thumbnail_url, category,
	       tags_json, created_at, updated_at, is_archived
	FROM bookmarks`

// NewSQLiteRepository opens the database, applies pragmas and runs migrations.
func NewSQLiteRepository(params SQLiteParams) (*SQLiteRepository, error) {
	if params.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(params.Path), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", params.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := checkSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.MigrateUp(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	version, _, err := migrations.Version(db.DB)
	if err != nil {
		db.Close()
		return nil, err
	}

	clock := params.Clock
	if clock == nil {
		clock = model.RealClock{}
	}

	return &SQLiteRepository{
		db:            db,
		path:          params.Path,
		schemaVersion: version,
		clock:         clock,
		notifier:      newNotifier(),
	}, nil
}

// checkSchema refuses a database left dirty by an interrupted migration.
func checkSchema(db *sqlx.DB) error {
	version, dirty, err := migrations.Version(db.DB)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w: version %d", ErrDirtySchema, version)
	}
	return nil
}

// SchemaVersion returns the migration version the database is at.
func (s *SQLiteRepository) SchemaVersion() uint {
	return s.schemaVersion
}

// Path returns the database file path.
func (s *SQLiteRepository) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

// Upsert inserts the bookmark or replaces the row with the same id.
func (s *SQLiteRepository) Upsert(ctx context.Context, b model.Bookmark) error {
	row, err := toRow(b)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO bookmarks (id, url, title, description, thumbnail_url, category,
		                       tags_json, created_at, updated_at, is_archived)
		VALUES (:id, :url, :title, :description, :thumbnail_url, :category,
		        :tags_json, :created_at, :updated_at, :is_archived)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			description = excluded.description,
			thumbnail_url = excluded.thumbnail_url,
			category = excluded.category,
			tags_json = excluded.tags_json,
			updated_at = MAX(bookmarks.updated_at, excluded.updated_at),
			is_archived = excluded.is_archived
	`, row)
	if err != nil {
		return fmt.Errorf("upsert bookmark %s: %w", b.ID, err)
	}

	s.notifier.notify()
	return nil
}

// Archive sets the archived flag and bumps updated_at.
func (s *SQLiteRepository) Archive(ctx context.Context, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET is_archived = ?, updated_at = MAX(updated_at, ?)
		WHERE id = ?
	`, boolToInt(archived), s.nowMillis(), id)
	if err != nil {
		return fmt.Errorf("archive bookmark %s: %w", id, err)
	}
	return s.afterWrite(res, id)
}

// UpdateMeta stores fetched metadata and bumps updated_at.
func (s *SQLiteRepository) UpdateMeta(ctx context.Context, id string, title, thumbnailPath *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET title = ?, thumbnail_url = ?, updated_at = MAX(updated_at, ?)
		WHERE id = ?
	`, title, thumbnailPath, s.nowMillis(), id)
	if err != nil {
		return fmt.Errorf("update metadata for %s: %w", id, err)
	}
	return s.afterWrite(res, id)
}

// Delete removes the bookmark.
func (s *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark %s: %w", id, err)
	}
	return s.afterWrite(res, id)
}

// All streams every bookmark, most recently updated first.
func (s *SQLiteRepository) All(ctx context.Context) <-chan Snapshot {
	return watch(ctx, s.notifier, func(ctx context.Context) ([]model.Bookmark, error) {
		return s.selectBookmarks(ctx, selectColumns+` ORDER BY updated_at DESC, created_at DESC`)
	})
}

// Search streams bookmarks whose title, url, note, category or tags contain keyword.
func (s *SQLiteRepository) Search(ctx context.Context, keyword string) <-chan Snapshot {
	like := "%" + escapeLike(keyword) + "%"
	return watch(ctx, s.notifier, func(ctx context.Context) ([]model.Bookmark, error) {
		return s.selectBookmarks(ctx, selectColumns+`
			WHERE title LIKE ? ESCAPE '\'
			   OR url LIKE ? ESCAPE '\'
			   OR description LIKE ? ESCAPE '\'
			   OR category LIKE ? ESCAPE '\'
			   OR tags_json LIKE ? ESCAPE '\'
			ORDER BY updated_at DESC, created_at DESC`,
			like, like, like, like, like)
	})
}

func (s *SQLiteRepository) selectBookmarks(ctx context.Context, query string, args ...any) ([]model.Bookmark, error) {
	var rows []bookmarkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}

	bookmarks := make([]model.Bookmark, 0, len(rows))
	for _, r := range rows {
		bookmarks = append(bookmarks, r.toDomain())
	}
	return bookmarks, nil
}

func (s *SQLiteRepository) afterWrite(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.notifier.notify()
	return nil
}

func (s *SQLiteRepository) nowMillis() int64 {
	return s.clock.Now().UnixMilli()
}

func toRow(b model.Bookmark) (bookmarkRow, error) {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return bookmarkRow{}, fmt.Errorf("encode tags: %w", err)
	}

	return bookmarkRow{
		ID:           b.ID,
		URL:          b.URL,
		Title:        nullString(b.Title),
		Description:  nullString(b.Description),
		ThumbnailURL: nullString(b.ThumbnailURL),
		Category:     nullString(b.Category),
		TagsJSON:     string(tagsJSON),
		CreatedAt:    b.CreatedAt.UnixMilli(),
		UpdatedAt:    b.UpdatedAt.UnixMilli(),
		IsArchived:   int64(boolToInt(b.Archived)),
	}, nil
}

func (r bookmarkRow) toDomain() model.Bookmark {
	var tags []string
	if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil || tags == nil {
		tags = []string{}
	}

	return model.Bookmark{
		ID:           r.ID,
		URL:          r.URL,
		Title:        stringPtr(r.Title),
		Description:  stringPtr(r.Description),
		ThumbnailURL: stringPtr(r.ThumbnailURL),
		Category:     stringPtr(r.Category),
		Tags:         tags,
		CreatedAt:    time.UnixMilli(r.CreatedAt),
		UpdatedAt:    time.UnixMilli(r.UpdatedAt),
		Archived:     r.IsArchived != 0,
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DefaultPath returns the default database path: ~/.config/pinny/pinny.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "pinny", "pinny.db"), nil
}
