package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_Add_assigns_ids(t *testing.T) {
	s := NewInMemoryStore()
	a := s.Add(MediaEntry{FileType: FileTypeImage}, StatusPending)
	b := s.Add(MediaEntry{ID: 10, FileType: FileTypeImage}, StatusPending)
	c := s.Add(MediaEntry{FileType: FileTypeImage}, StatusPending)

	assert.Equal(t, MediaID(1), a)
	assert.Equal(t, MediaID(10), b)
	assert.Equal(t, MediaID(11), c)
}

func TestInMemoryStore_Approve_only_pending(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id := s.Add(MediaEntry{FileType: FileTypeImage}, StatusPending)

	require.NoError(t, s.ApproveMedia(ctx, id, 1))
	st, _ := s.StatusOf(id)
	assert.Equal(t, StatusApproved, st)

	assert.ErrorIs(t, s.ApproveMedia(ctx, id, 1), ErrMediaNotFound, "already approved")
	assert.ErrorIs(t, s.RejectMedia(ctx, id, 1), ErrMediaNotFound)
	assert.ErrorIs(t, s.ApproveMedia(ctx, 404, 1), ErrMediaNotFound)

	items, err := s.ListApprovedMedia(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].ApprovedAt.IsZero())
}

func TestInMemoryStore_Reject_and_Delete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id := s.Add(MediaEntry{FileType: FileTypeVideo}, StatusPending)

	require.NoError(t, s.RejectMedia(ctx, id, 2))
	st, _ := s.StatusOf(id)
	assert.Equal(t, StatusRejected, st)

	require.NoError(t, s.DeleteMedia(ctx, id))
	_, ok := s.StatusOf(id)
	assert.False(t, ok)
	assert.ErrorIs(t, s.DeleteMedia(ctx, id), ErrMediaNotFound)
}

func TestInMemoryStore_UpdateDisplayOrder_all_or_nothing(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	a := s.Add(MediaEntry{FileType: FileTypeImage}, StatusApproved)
	one := 1

	err := s.UpdateDisplayOrder(ctx, []OrderUpdate{{ID: a, DisplayOrder: &one}, {ID: 99, DisplayOrder: &one}})
	assert.ErrorIs(t, err, ErrMediaNotFound)

	items, _ := s.ListApprovedMedia(ctx)
	assert.Nil(t, items[0].DisplayOrder)

	require.NoError(t, s.UpdateDisplayOrder(ctx, []OrderUpdate{{ID: a, DisplayOrder: &one}}))
	items, _ = s.ListApprovedMedia(ctx)
	require.NotNil(t, items[0].DisplayOrder)
	assert.Equal(t, 1, *items[0].DisplayOrder)

	require.NoError(t, s.UpdateDisplayOrder(ctx, []OrderUpdate{{ID: a}}))
	items, _ = s.ListApprovedMedia(ctx)
	assert.Nil(t, items[0].DisplayOrder)
}

func TestInMemoryStore_UpdateMedia(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id := s.Add(MediaEntry{Title: "old", FileType: FileTypeImage}, StatusApproved)

	title, dur := "new", 12.0
	require.NoError(t, s.UpdateMedia(ctx, id, MediaPatch{Title: &title, Duration: &dur}))

	items, _ := s.ListApprovedMedia(ctx)
	assert.Equal(t, "new", items[0].Title)
	assert.Equal(t, 12.0, *items[0].DurationSeconds)
	assert.ErrorIs(t, s.UpdateMedia(ctx, 99, MediaPatch{Title: &title}), ErrMediaNotFound)
}

func TestInMemoryStore_ArchiveOlderThan(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	old := s.Add(MediaEntry{FileType: FileTypeImage, ApprovedAt: now.Add(-48 * time.Hour)}, StatusApproved)
	s.Add(MediaEntry{FileType: FileTypeImage, ApprovedAt: now}, StatusApproved)
	s.Add(MediaEntry{FileType: FileTypeImage}, StatusPending)

	n, err := s.ArchiveOlderThan(ctx, now.Add(-24*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st, _ := s.StatusOf(old)
	assert.Equal(t, StatusArchived, st)

	count, err := s.CountApproved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInMemoryStore_canceled_context(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListApprovedMedia(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.CountApproved(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryStore_concurrent_access(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Add(MediaEntry{FileType: FileTypeImage}, StatusApproved)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.ListApprovedMedia(ctx)
		}()
	}
	wg.Wait()

	n, err := s.CountApproved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestPlayDuration(t *testing.T) {
	zero, neg, five, huge := 0.0, -3.0, 5.0, 1e11
	tests := []struct {
		name string
		item MediaEntry
		want time.Duration
	}{
		{"stored", MediaEntry{FileType: FileTypeVideo, DurationSeconds: &five}, 5 * time.Second},
		{"zero falls back", MediaEntry{FileType: FileTypeImage, DurationSeconds: &zero}, DefaultImageDuration},
		{"negative falls back", MediaEntry{FileType: FileTypeVideo, DurationSeconds: &neg}, DefaultVideoDuration},
		{"unset video", MediaEntry{FileType: FileTypeVideo}, DefaultVideoDuration},
		{"unknown type", MediaEntry{FileType: "audio"}, DefaultImageDuration},
		{"huge capped", MediaEntry{FileType: FileTypeImage, DurationSeconds: &huge}, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlayDuration(tt.item))
		})
	}
}

func TestSortCatalog_ties_broken_by_id(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	one := 1
	items := []MediaEntry{
		{ID: 3, ApprovedAt: at},
		{ID: 1, ApprovedAt: at},
		{ID: 2, ApprovedAt: at, DisplayOrder: &one},
	}
	SortCatalog(items)
	assert.Equal(t, []MediaID{2, 1, 3}, []MediaID{items[0].ID, items[1].ID, items[2].ID})
}

func TestClampIndex(t *testing.T) {
	assert.Equal(t, 0, clampIndex(-1, 4))
	assert.Equal(t, 3, clampIndex(99, 4))
	assert.Equal(t, 2, clampIndex(2, 4))
	assert.Equal(t, 0, clampIndex(5, 0))
}
