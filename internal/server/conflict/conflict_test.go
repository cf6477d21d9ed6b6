package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/content"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	t   time.Time
	ok  bool
	err error
}

func (s stubSource) CurrentModifiedTime(context.Context, string) (time.Time, bool, error) {
	return s.t, s.ok, s.err
}

func TestCheck(t *testing.T) {
	stored := time.Date(2022, 4, 8, 8, 29, 1, 355_123_456, time.UTC)

	tests := []struct {
		name      string
		source    stubSource
		timestamp string
		wantErr   error
	}{
		{"no timestamp", stubSource{t: stored, ok: true}, "", nil},
		{"no version yet", stubSource{ok: false}, "2000-01-01T00:00:00Z", nil},
		{"equal zone-less", stubSource{t: stored, ok: true}, "2022-04-08T08:29:01.355", nil},
		{"equal with zone", stubSource{t: stored, ok: true}, "2022-04-08T08:29:01.355000Z", nil},
		{"equal other offset", stubSource{t: stored, ok: true}, "2022-04-08T10:29:01.355+02:00", nil},
		{"one millisecond off", stubSource{t: stored, ok: true}, "2022-04-08T08:29:01.356", common.ErrConflictDetected},
		{"older", stubSource{t: stored, ok: true}, "2011-02-24T16:16:37.300000Z", common.ErrConflictDetected},
		{"garbage", stubSource{t: stored, ok: true}, "yesterday", common.ErrConflictDetected},
		{"store failure", stubSource{err: errors.New("db down")}, "2022-04-08T08:29:01.355", common.ErrStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.source, logging.Nop())
			err := d.Check(context.Background(), "f", tt.timestamp)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheck_AgainstRepository(t *testing.T) {
	ctx := context.Background()
	repo := content.NewMemoryRepository()
	now := time.Date(2024, 1, 1, 10, 0, 0, 123_000_000, time.UTC)
	repo.SetClock(func() time.Time { return now })

	_, err := repo.Create(ctx, models.FileMetadata{ID: "f"}, []byte("a"))
	require.NoError(t, err)

	d := NewDetector(repo, logging.Nop())
	require.NoError(t, d.Check(ctx, "f", "2024-01-01T10:00:00.123Z"))

	now = now.Add(time.Second)
	_, err = repo.WriteVersion(ctx, "f", []byte("b"), models.VersionOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Check(ctx, "f", "2024-01-01T10:00:00.123Z"), common.ErrConflictDetected)
}
