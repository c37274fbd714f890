package display

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store is the persistence collaborator the scheduler reads approved media
// from. Implementations may be in-memory or SQL-backed; callers do not need to
// know which is used.
type Store interface {
	// ListApprovedMedia returns approved items ordered by display order
	// (nulls last, ascending) then approval time descending.
	ListApprovedMedia(ctx context.Context) ([]MediaEntry, error)
	// SetMediaDuration stores the play duration for an item.
	SetMediaDuration(ctx context.Context, id MediaID, seconds float64) error
	// CountApproved returns the number of approved items.
	CountApproved(ctx context.Context) (int, error)
	// ArchiveOlderThan archives approved items approved before cutoff,
	// attributing the change to adminID, and returns how many were archived.
	ArchiveOlderThan(ctx context.Context, cutoff time.Time, adminID int64) (int, error)
	// FirstAdminID returns the id of some admin account.
	FirstAdminID(ctx context.Context) (int64, error)
	// Setting returns an operator setting by key.
	Setting(ctx context.Context, key string) (string, bool, error)
}

// Moderator is the media moderation surface. Every successful call changes
// the approved set or its order, so callers must invalidate the catalog.
type Moderator interface {
	ApproveMedia(ctx context.Context, id MediaID, by int64) error
	RejectMedia(ctx context.Context, id MediaID, by int64) error
	DeleteMedia(ctx context.Context, id MediaID) error
	UpdateDisplayOrder(ctx context.Context, items []OrderUpdate) error
	UpdateMedia(ctx context.Context, id MediaID, patch MediaPatch) error
}

var (
	// ErrMediaNotFound is returned when an item does not exist or is not in
	// the state the operation requires.
	ErrMediaNotFound = errors.New("media not found")

	// ErrNoAdmin is returned when no admin account exists to attribute a
	// system action to.
	ErrNoAdmin = errors.New("no admin account")
)

// SettingArchiveAfterDays is the settings key holding the retention window.
const SettingArchiveAfterDays = "archive_after_days"

type mediaRecord struct {
	entry      MediaEntry
	status     Status
	approvedBy int64
	archivedBy int64
}

// InMemoryStore is a concurrency-safe in-memory implementation of Store and
// Moderator. It backs tests and database-less demo runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	media    map[MediaID]*mediaRecord
	nextID   MediaID
	admins   []int64
	settings map[string]string
	now      func() time.Time
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		media:    make(map[MediaID]*mediaRecord),
		settings: make(map[string]string),
		now:      time.Now,
	}
}

// Add inserts an item with the given status and returns its id. A zero
// entry.ID is assigned automatically.
func (s *InMemoryStore) Add(entry MediaEntry, status Status) MediaID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == 0 {
		s.nextID++
		entry.ID = s.nextID
	} else if entry.ID > s.nextID {
		s.nextID = entry.ID
	}
	if status == StatusApproved && entry.ApprovedAt.IsZero() {
		entry.ApprovedAt = s.now().UTC()
	}
	s.media[entry.ID] = &mediaRecord{entry: entry, status: status}
	return entry.ID
}

// AddAdmin registers an admin account id.
func (s *InMemoryStore) AddAdmin(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = append(s.admins, id)
}

// SetSetting stores an operator setting.
func (s *InMemoryStore) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// StatusOf returns the moderation status of id.
func (s *InMemoryStore) StatusOf(id MediaID) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.media[id]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// ListApprovedMedia implements Store.ListApprovedMedia.
func (s *InMemoryStore) ListApprovedMedia(ctx context.Context) ([]MediaEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MediaEntry, 0, len(s.media))
	for _, rec := range s.media {
		if rec.status == StatusApproved {
			out = append(out, rec.entry)
		}
	}
	SortCatalog(out)
	return out, nil
}

// SetMediaDuration implements Store.SetMediaDuration.
func (s *InMemoryStore) SetMediaDuration(ctx context.Context, id MediaID, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.media[id]
	if !ok {
		return ErrMediaNotFound
	}
	d := seconds
	rec.entry.DurationSeconds = &d
	return nil
}

// CountApproved implements Store.CountApproved.
func (s *InMemoryStore) CountApproved(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.media {
		if rec.status == StatusApproved {
			n++
		}
	}
	return n, nil
}

// ArchiveOlderThan implements Store.ArchiveOlderThan.
func (s *InMemoryStore) ArchiveOlderThan(ctx context.Context, cutoff time.Time, adminID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.media {
		if rec.status == StatusApproved && rec.entry.ApprovedAt.Before(cutoff) {
			rec.status = StatusArchived
			rec.archivedBy = adminID
			n++
		}
	}
	return n, nil
}

// FirstAdminID implements Store.FirstAdminID.
func (s *InMemoryStore) FirstAdminID(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.admins) == 0 {
		return 0, ErrNoAdmin
	}
	return s.admins[0], nil
}

// Setting implements Store.Setting.
func (s *InMemoryStore) Setting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

// ApproveMedia implements Moderator.ApproveMedia.
func (s *InMemoryStore) ApproveMedia(ctx context.Context, id MediaID, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.media[id]
	if !ok || rec.status != StatusPending {
		return ErrMediaNotFound
	}
	rec.status = StatusApproved
	rec.approvedBy = by
	rec.entry.ApprovedAt = s.now().UTC()
	return nil
}

// RejectMedia implements Moderator.RejectMedia.
func (s *InMemoryStore) RejectMedia(ctx context.Context, id MediaID, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.media[id]
	if !ok || rec.status != StatusPending {
		return ErrMediaNotFound
	}
	rec.status = StatusRejected
	rec.approvedBy = by
	return nil
}

// DeleteMedia implements Moderator.DeleteMedia.
func (s *InMemoryStore) DeleteMedia(ctx context.Context, id MediaID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.media[id]; !ok {
		return ErrMediaNotFound
	}
	delete(s.media, id)
	return nil
}

// UpdateDisplayOrder implements Moderator.UpdateDisplayOrder. The update is
// all-or-nothing: an unknown id leaves every item unchanged.
func (s *InMemoryStore) UpdateDisplayOrder(ctx context.Context, items []OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		if _, ok := s.media[it.ID]; !ok {
			return ErrMediaNotFound
		}
	}
	for _, it := range items {
		rec := s.media[it.ID]
		if it.DisplayOrder == nil {
			rec.entry.DisplayOrder = nil
			continue
		}
		o := *it.DisplayOrder
		rec.entry.DisplayOrder = &o
	}
	return nil
}

// UpdateMedia implements Moderator.UpdateMedia.
func (s *InMemoryStore) UpdateMedia(ctx context.Context, id MediaID, patch MediaPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.media[id]
	if !ok {
		return ErrMediaNotFound
	}
	if patch.Title != nil {
		rec.entry.Title = *patch.Title
	}
	if patch.Description != nil {
		rec.entry.Description = *patch.Description
	}
	if patch.Duration != nil {
		d := *patch.Duration
		rec.entry.DurationSeconds = &d
	}
	return nil
}
