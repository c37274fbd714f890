package display

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-sync/internal/platform/logger"
	"signage-sync/internal/platform/metrics"
)

func seedAged(f *fixture, age time.Duration) MediaID {
	return f.store.Add(MediaEntry{
		FileType:   FileTypeImage,
		ApprovedAt: f.clock.Now().Add(-age),
	}, StatusApproved)
}

func TestArchiveLoop_RunOnce_archives_old_items(t *testing.T) {
	f := newFixture(t)
	f.store.AddAdmin(1)
	f.store.SetSetting(SettingArchiveAfterDays, "30")
	old := seedAged(f, 40*24*time.Hour)
	fresh := seedAged(f, 5*24*time.Hour)
	ctx := context.Background()
	require.Len(t, f.catalog.List(ctx), 2)

	m := metrics.New()
	loop := NewArchiveLoop(f.store, f.catalog, f.clock, 0, 0, logger.Discard(), m)
	n, err := loop.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, _ := f.store.StatusOf(old)
	assert.Equal(t, StatusArchived, st)
	st, _ = f.store.StatusOf(fresh)
	assert.Equal(t, StatusApproved, st)

	items := f.catalog.List(ctx)
	require.Len(t, items, 1, "catalog invalidated after the sweep")
	assert.Equal(t, fresh, items[0].ID)
	assert.Equal(t, 1.0, counterValue(t, m, "signage_media_archived_total"))
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, metric := range mf.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		return sum
	}
	return 0
}

func TestArchiveLoop_RunOnce_setting_falls_back_to_default(t *testing.T) {
	f := newFixture(t)
	f.store.AddAdmin(1)
	seedAged(f, 10*24*time.Hour)

	loop := NewArchiveLoop(f.store, f.catalog, f.clock, 0, 7, logger.Discard(), nil)
	n, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.store.SetSetting(SettingArchiveAfterDays, "not-a-number")
	seedAged(f, 8*24*time.Hour)
	n, err = loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestArchiveLoop_RunOnce_disabled(t *testing.T) {
	f := newFixture(t)
	f.store.AddAdmin(1)
	f.store.SetSetting(SettingArchiveAfterDays, "0")
	seedAged(f, 400*24*time.Hour)

	loop := NewArchiveLoop(f.store, f.catalog, f.clock, 0, 30, logger.Discard(), nil)
	n, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveLoop_RunOnce_without_admin(t *testing.T) {
	f := newFixture(t)
	id := seedAged(f, 60*24*time.Hour)

	loop := NewArchiveLoop(f.store, f.catalog, f.clock, 0, 30, logger.Discard(), nil)
	_, err := loop.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoAdmin)

	st, _ := f.store.StatusOf(id)
	assert.Equal(t, StatusApproved, st)
}

func TestArchiveLoop_String(t *testing.T) {
	f := newFixture(t)
	loop := NewArchiveLoop(f.store, f.catalog, nil, 0, 0, logger.Discard(), nil)
	assert.Equal(t, "media-archiver", loop.String())
}
