package content

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

type memFile struct {
	meta     models.FileMetadata
	data     []byte
	versions []*models.VersionEntry
	seq      int64
}

// MemoryRepository is a Repository kept in process memory. Version bytes are
// not retained; only the head content is.
type MemoryRepository struct {
	mu    sync.RWMutex
	files map[string]*memFile
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{files: make(map[string]*memFile), now: time.Now}
}

// SetClock replaces the wall clock, for tests.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Create adds a file whose initial content becomes version 1.0. That version
// is not a protocol save, so it is never pruned.
func (r *MemoryRepository) Create(_ context.Context, meta models.FileMetadata, data []byte) (*models.FileMetadata, error) {
	if meta.ID == "" {
		return nil, common.NewValidationError("id", "must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[meta.ID]; ok {
		return nil, common.NewValidationError("id", "file already exists")
	}

	now := r.now()
	v := &models.VersionEntry{
		FileID:    meta.ID,
		Label:     Label(1),
		Seq:       1,
		CreatedAt: now,
		CreatedBy: meta.Owner,
		Size:      int64(len(data)),
	}
	meta.Size = int64(len(data))
	meta.HeadLabel = v.Label
	meta.ModifiedAt = now
	meta.CreatedAt = now

	r.files[meta.ID] = &memFile{meta: meta, data: bytes.Clone(data), versions: []*models.VersionEntry{v}, seq: 1}
	out := meta
	return &out, nil
}

func (r *MemoryRepository) file(fileID string) (*memFile, error) {
	f, ok := r.files[fileID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f, nil
}

func (r *MemoryRepository) Read(_ context.Context, fileID string) (io.ReadCloser, *models.FileMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, err := r.file(fileID)
	if err != nil {
		return nil, nil, err
	}
	meta := f.meta
	return io.NopCloser(bytes.NewReader(bytes.Clone(f.data))), &meta, nil
}

func (r *MemoryRepository) Write(_ context.Context, fileID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.file(fileID)
	if err != nil {
		return err
	}
	f.data = bytes.Clone(data)
	f.meta.Size = int64(len(data))
	f.meta.ModifiedAt = r.now()
	return nil
}

func (r *MemoryRepository) CurrentModifiedTime(_ context.Context, fileID string) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, err := r.file(fileID)
	if err != nil {
		return time.Time{}, false, err
	}
	if f.meta.HeadLabel == "" {
		return time.Time{}, false, nil
	}
	return f.meta.ModifiedAt, true, nil
}

func (r *MemoryRepository) WriteVersion(_ context.Context, fileID string, data []byte, opts models.VersionOptions) (*models.VersionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.file(fileID)
	if err != nil {
		return nil, err
	}
	f.data = bytes.Clone(data)
	return r.appendVersion(f, opts), nil
}

func (r *MemoryRepository) CreateVersion(_ context.Context, fileID string, opts models.VersionOptions) (*models.VersionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.file(fileID)
	if err != nil {
		return nil, err
	}
	return r.appendVersion(f, opts), nil
}

func (r *MemoryRepository) appendVersion(f *memFile, opts models.VersionOptions) *models.VersionEntry {
	now := r.now()
	f.seq++
	v := newVersion(f.meta.ID, f.seq, now, opts, "", int64(len(f.data)))
	f.versions = append(f.versions, v)
	f.meta.HeadLabel = v.Label
	f.meta.Size = v.Size
	f.meta.ModifiedAt = now

	out := *v
	return &out
}

func (r *MemoryRepository) ListVersions(_ context.Context, fileID string) ([]*models.VersionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, err := r.file(fileID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.VersionEntry, 0, len(f.versions))
	for _, v := range f.versions {
		c := *v
		out = append(out, &c)
	}
	return out, nil
}

func (r *MemoryRepository) DeleteVersion(_ context.Context, fileID, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.file(fileID)
	if err != nil {
		return err
	}
	if label == f.meta.HeadLabel {
		return ErrHeadVersion
	}
	for i, v := range f.versions {
		if v.Label == label {
			f.versions = append(f.versions[:i], f.versions[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *MemoryRepository) Stat(_ context.Context, fileID string) (*models.FileMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, err := r.file(fileID)
	if err != nil {
		return nil, err
	}
	meta := f.meta
	return &meta, nil
}
