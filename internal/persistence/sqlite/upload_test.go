package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"signage-sync/internal/display"
)

// Setting keys the upload service reads when registering media.
const (
	SettingAutoApprove          = "auto_approve"
	SettingDefaultImageDuration = "default_image_duration"
)

// NewMedia is an uploaded file to register.
type NewMedia struct {
	Title       string
	Description string
	FilePath    string
	FileType    display.FileType
	Duration    *float64
	UserID      int64
}

// CreateMedia registers an upload the way the upload service does. With
// auto_approve enabled it is approved immediately on behalf of the uploader;
// images without a duration get the default_image_duration setting.
func (s *Store) CreateMedia(ctx context.Context, m NewMedia) (display.MediaID, display.Status, error) {
	autoApprove := false
	if v, ok, err := s.Setting(ctx, SettingAutoApprove); err != nil {
		return 0, "", err
	} else if ok {
		autoApprove, _ = strconv.ParseBool(v)
	}

	var duration sql.NullFloat64
	switch {
	case m.FileType == display.FileTypeImage && m.Duration != nil:
		duration = sql.NullFloat64{Float64: *m.Duration, Valid: true}
	case m.FileType == display.FileTypeImage:
		if v, ok, err := s.Setting(ctx, SettingDefaultImageDuration); err != nil {
			return 0, "", err
		} else if ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				duration = sql.NullFloat64{Float64: f, Valid: true}
			}
		}
	}

	now := s.stamp()
	status := display.StatusPending
	var approvedAt sql.NullString
	var approvedBy sql.NullInt64
	if autoApprove {
		status = display.StatusApproved
		approvedAt = sql.NullString{String: now, Valid: true}
		approvedBy = sql.NullInt64{Int64: m.UserID, Valid: true}
	}

	res, err := s.DB.ExecContext(ctx, `
	INSERT INTO media (title, description, file_path, file_type, duration, user_id, status, created_at, approved_at, approved_by)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Title, m.Description, m.FilePath, string(m.FileType), duration, m.UserID, string(status), now, approvedAt, approvedBy)
	if err != nil {
		return 0, "", fmt.Errorf("create media: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}
	return display.MediaID(id), status, nil
}

// SetSetting upserts an operator setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

