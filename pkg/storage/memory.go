package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process MetadataStore used for tests and demos
type MemoryStore struct {
	mu          sync.RWMutex
	seq         int64
	workspaces  map[string]*Workspace
	wsOrder     map[string]int64
	files       map[string]*File
	fileOrder   map[string]int64
	permissions []*WorkspacePermission
	profiles    map[string]*Profile
}

// NewMemoryStore creates an empty in-memory metadata store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: make(map[string]*Workspace),
		wsOrder:    make(map[string]int64),
		files:      make(map[string]*File),
		fileOrder:  make(map[string]int64),
		profiles:   make(map[string]*Profile),
	}
}

func (s *MemoryStore) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		copied := *ws
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.wsOrder[out[i].ID] > s.wsOrder[out[j].ID]
	})
	return out, nil
}

func (s *MemoryStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	copied := *ws
	return &copied, nil
}

func (s *MemoryStore) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workspaces[ws.ID]; exists {
		return fmt.Errorf("workspace %s already exists", ws.ID)
	}
	copied := *ws
	s.seq++
	s.workspaces[ws.ID] = &copied
	s.wsOrder[ws.ID] = s.seq
	return nil
}

func (s *MemoryStore) ListPermissionsForUser(ctx context.Context, userID string) ([]*WorkspacePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*WorkspacePermission
	for _, p := range s.permissions {
		if p.UserID == userID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

// GrantPermission records a per-workspace grant, replacing any earlier one
func (s *MemoryStore) GrantPermission(ctx context.Context, p *WorkspacePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.permissions {
		if existing.WorkspaceID == p.WorkspaceID && existing.UserID == p.UserID {
			copied := *p
			s.permissions[i] = &copied
			return nil
		}
	}
	copied := *p
	s.permissions = append(s.permissions, &copied)
	return nil
}

func (s *MemoryStore) ListFiles(ctx context.Context, workspaceID string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*File
	for _, f := range s.files {
		if f.WorkspaceID == workspaceID {
			copied := *f
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.fileOrder[out[i].ID] > s.fileOrder[out[j].ID]
	})
	return out, nil
}

func (s *MemoryStore) GetFile(ctx context.Context, id string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	copied := *f
	return &copied, nil
}

func (s *MemoryStore) CreateFile(ctx context.Context, f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[f.WorkspaceID]; !ok {
		return fmt.Errorf("workspace %s: %w", f.WorkspaceID, ErrNotFound)
	}
	for _, existing := range s.files {
		if existing.FilePath == f.FilePath {
			return fmt.Errorf("file path %s already exists", f.FilePath)
		}
	}
	copied := *f
	s.seq++
	s.files[f.ID] = &copied
	s.fileOrder[f.ID] = s.seq
	return nil
}

func (s *MemoryStore) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	delete(s.files, id)
	delete(s.fileOrder, id)
	return nil
}

func (s *MemoryStore) FileExistsByPath(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.files {
		if f.FilePath == path {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) ListProfiles(ctx context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.profiles[p.ID]; ok {
		existing.Email = p.Email
		existing.FullName = p.FullName
		return nil
	}
	copied := *p
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = &copied
	return nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryBlob struct {
	data        []byte
	contentType string
	modifiedAt  time.Time
}

// MemoryBlobStore is an in-process BlobStore
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
	now   func() time.Time
}

// NewMemoryBlobStore creates an empty in-memory blob store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[string]memoryBlob),
		now:   time.Now,
	}
}

func (b *MemoryBlobStore) PutBlob(ctx context.Context, path string, content io.Reader, contentType string) (int64, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[path] = memoryBlob{data: data, contentType: contentType, modifiedAt: b.now()}
	return int64(len(data)), nil
}

func (b *MemoryBlobStore) GetBlob(ctx context.Context, path string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	blob, ok := b.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", path, ErrNotFound)
	}
	return &SizedBlob{ReadCloser: io.NopCloser(bytes.NewReader(blob.data)), Length: int64(len(blob.data))}, nil
}

func (b *MemoryBlobStore) DeleteBlob(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, path)
	return nil
}

func (b *MemoryBlobStore) ListBlobs(ctx context.Context, prefix string) ([]BlobInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []BlobInfo
	for path, blob := range b.blobs {
		if strings.HasPrefix(path, prefix) {
			out = append(out, BlobInfo{Path: path, Size: int64(len(blob.data)), ModifiedAt: blob.modifiedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// SetModTime overrides the recorded modification time of a blob
func (b *MemoryBlobStore) SetModTime(path string, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if blob, ok := b.blobs[path]; ok {
		blob.modifiedAt = t
		b.blobs[path] = blob
	}
}

func (b *MemoryBlobStore) HealthCheck(ctx context.Context) error {
	return nil
}
