package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"signage-sync/internal/display"
)

// timeLayout matches SQLite's datetime('now') text format. Timestamps are
// stored as UTC text so lexical and chronological order agree.
const timeLayout = "2006-01-02 15:04:05"

// Store implements display.Store and display.Moderator on SQLite.
type Store struct {
	DB            *sql.DB
	uploadsPrefix string
	now           func() time.Time
}

// NewStore opens dbPath and migrates it. uploadsPrefix is joined with the
// file's base name to build the public file URL.
func NewStore(ctx context.Context, dbPath, uploadsPrefix string) (*Store, error) {
	db, err := Open(dbPath, DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media store: migration failed: %w", err)
	}
	if uploadsPrefix == "" {
		uploadsPrefix = "/uploads/"
	}
	return &Store{DB: db, uploadsPrefix: uploadsPrefix, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// User is an account row used for attribution and seeding.
type User struct {
	ID            int64
	Username      string
	Role          string
	FirstName     string
	LastName      string
	PreferredName string
	Email         string
}

// CreateUser inserts u and returns its id.
func (s *Store) CreateUser(ctx context.Context, u User) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
	INSERT INTO users (username, role, first_name, last_name, preferred_name, email, created_at)
	VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		u.Username, u.Role, u.FirstName, u.LastName, u.PreferredName, u.Email, s.stamp())
	if err != nil {
		return 0, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return res.LastInsertId()
}

// EnsureAdmin returns the first admin account, creating u as an admin when
// none exists so archive sweeps have someone to attribute to.
func (s *Store) EnsureAdmin(ctx context.Context, u User) (id int64, created bool, err error) {
	id, err = s.FirstAdminID(ctx)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, display.ErrNoAdmin) {
		return 0, false, err
	}
	u.Role = "admin"
	id, err = s.CreateUser(ctx, u)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ListApprovedMedia implements display.Store.
func (s *Store) ListApprovedMedia(ctx context.Context) ([]display.MediaEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT m.id, m.title, COALESCE(m.description, ''), m.file_path, m.file_type,
	       m.duration, m.display_order, m.created_at, m.approved_at,
	       COALESCE(u.username, ''),
	       TRIM(COALESCE(u.preferred_name, u.first_name, '') || ' ' || COALESCE(u.last_name, ''))
	FROM media m
	LEFT JOIN users u ON m.user_id = u.id
	WHERE m.status = 'approved'
	ORDER BY
		CASE WHEN m.display_order IS NULL THEN 1 ELSE 0 END,
		m.display_order ASC,
		m.approved_at DESC,
		m.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list approved media: %w", err)
	}
	defer rows.Close()

	items := []display.MediaEntry{}
	for rows.Next() {
		var (
			e          display.MediaEntry
			filePath   string
			fileType   string
			duration   sql.NullFloat64
			order      sql.NullInt64
			createdAt  string
			approvedAt sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &filePath, &fileType,
			&duration, &order, &createdAt, &approvedAt, &e.UploadedBy, &e.FullName); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		e.FileType = display.FileType(fileType)
		e.FileURL = s.fileURL(filePath)
		if duration.Valid {
			d := duration.Float64
			e.DurationSeconds = &d
		}
		if order.Valid {
			o := int(order.Int64)
			e.DisplayOrder = &o
		}
		e.CreatedAt = parseStamp(createdAt)
		if approvedAt.Valid {
			e.ApprovedAt = parseStamp(approvedAt.String)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}

// SetMediaDuration implements display.Store.
func (s *Store) SetMediaDuration(ctx context.Context, id display.MediaID, seconds float64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE media SET duration = ? WHERE id = ?`, seconds, int64(id))
	return affected(res, err)
}

// CountApproved implements display.Store.
func (s *Store) CountApproved(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE status = 'approved'`).Scan(&n)
	return n, err
}

// ArchiveOlderThan implements display.Store.
func (s *Store) ArchiveOlderThan(ctx context.Context, cutoff time.Time, adminID int64) (int, error) {
	res, err := s.DB.ExecContext(ctx, `
	UPDATE media
	SET status = 'archived', archived_at = ?, archived_by = ?
	WHERE status = 'approved' AND approved_at < ?`,
		s.stamp(), adminID, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("archive media: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FirstAdminID implements display.Store.
func (s *Store) FirstAdminID(ctx context.Context) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE role = 'admin' ORDER BY id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, display.ErrNoAdmin
	}
	return id, err
}

// Setting implements display.Store.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// ApproveMedia implements display.Moderator. Only pending items can be approved.
func (s *Store) ApproveMedia(ctx context.Context, id display.MediaID, by int64) error {
	res, err := s.DB.ExecContext(ctx, `
	UPDATE media SET status = 'approved', approved_at = ?, approved_by = ?
	WHERE id = ? AND status = 'pending'`, s.stamp(), by, int64(id))
	return affected(res, err)
}

// RejectMedia implements display.Moderator. Only pending items can be rejected.
func (s *Store) RejectMedia(ctx context.Context, id display.MediaID, by int64) error {
	res, err := s.DB.ExecContext(ctx, `
	UPDATE media SET status = 'rejected', approved_at = ?, approved_by = ?
	WHERE id = ? AND status = 'pending'`, s.stamp(), by, int64(id))
	return affected(res, err)
}

// DeleteMedia implements display.Moderator.
func (s *Store) DeleteMedia(ctx context.Context, id display.MediaID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, int64(id))
	return affected(res, err)
}

// UpdateDisplayOrder implements display.Moderator in one transaction; an
// unknown id rolls the whole batch back.
func (s *Store) UpdateDisplayOrder(ctx context.Context, items []display.OrderUpdate) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE media SET display_order = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		var order sql.NullInt64
		if it.DisplayOrder != nil {
			order = sql.NullInt64{Int64: int64(*it.DisplayOrder), Valid: true}
		}
		if err := affected(stmt.ExecContext(ctx, order, int64(it.ID))); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateMedia implements display.Moderator.
func (s *Store) UpdateMedia(ctx context.Context, id display.MediaID, patch display.MediaPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets, args = append(sets, "title = ?"), append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *patch.Description)
	}
	if patch.Duration != nil {
		sets, args = append(sets, "duration = ?"), append(args, *patch.Duration)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, int64(id))
	res, err := s.DB.ExecContext(ctx, "UPDATE media SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return affected(res, err)
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *Store) fileURL(filePath string) string {
	return strings.TrimSuffix(s.uploadsPrefix, "/") + "/" + filepath.Base(filePath)
}

func parseStamp(v string) time.Time {
	t, err := time.ParseInLocation(timeLayout, v, time.UTC)
	if err != nil {
		// Rows written by other tools may carry RFC 3339.
		t, _ = time.Parse(time.RFC3339, v)
	}
	return t
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return display.ErrMediaNotFound
	}
	return nil
}

var (
	_ display.Store     = (*Store)(nil)
	_ display.Moderator = (*Store)(nil)
)
