package files

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"log/slog"

	"github.com/vehosts/vehosts/internal/artifact"
	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
)

type stubFileRepository struct {
	nodes map[string]*domain.ProjectFile
}

func newStubFileRepository() *stubFileRepository {
	return &stubFileRepository{nodes: map[string]*domain.ProjectFile{}}
}

func (s *stubFileRepository) CreateFile(ctx context.Context, file *domain.ProjectFile) error {
	for _, node := range s.nodes {
		if node.ProjectID == file.ProjectID && node.Path == file.Path {
			return repository.ErrConflict
		}
	}
	clone := *file
	s.nodes[file.ID] = &clone
	return nil
}

func (s *stubFileRepository) UpdateFileContent(ctx context.Context, fileID string, content *string) error {
	node, ok := s.nodes[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	node.Content = content
	return nil
}

func (s *stubFileRepository) GetFileByPath(ctx context.Context, projectID, path string) (*domain.ProjectFile, error) {
	for _, node := range s.nodes {
		if node.ProjectID == projectID && node.Path == path {
			clone := *node
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubFileRepository) ListFilesByProject(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	var out []domain.ProjectFile
	for _, node := range s.nodes {
		if node.ProjectID == projectID {
			out = append(out, *node)
		}
	}
	return out, nil
}

func (s *stubFileRepository) DeleteFile(ctx context.Context, fileID string) error {
	if _, ok := s.nodes[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.nodes, fileID)
	return nil
}

type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *stubStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return data, nil
}

func (s *stubStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *stubStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func strptr(v string) *string { return &v }

func testProject() *domain.Project {
	return &domain.Project{
		ID:       "proj-1",
		OwnerKey: "owner-1",
		Slug:     "site",
		Language: domain.LanguageHTML,
	}
}

func newTestService(repo *stubFileRepository, store *stubStore) Service {
	return New(repo, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateFileMirrorsContent(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{}}
	svc := newTestService(newStubFileRepository(), store)

	node, err := svc.Create(context.Background(), testProject(), CreateInput{
		Name:    "index.html",
		Content: strptr("<html></html>"),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if node.Path != "/index.html" {
		t.Fatalf("unexpected path %q", node.Path)
	}
	mirrored, err := store.Get(context.Background(), "owner-1/site/index.html")
	if err != nil {
		t.Fatalf("mirror missing: %v", err)
	}
	if string(mirrored) != "<html></html>" {
		t.Fatalf("unexpected mirrored content %q", mirrored)
	}
}

func TestCreateDirectoryRejectsContent(t *testing.T) {
	svc := newTestService(newStubFileRepository(), &stubStore{objects: map[string][]byte{}})

	_, err := svc.Create(context.Background(), testProject(), CreateInput{
		Name:        "assets",
		IsDirectory: true,
		Content:     strptr("nope"),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRequiresExistingDirectoryParent(t *testing.T) {
	repo := newStubFileRepository()
	store := &stubStore{objects: map[string][]byte{}}
	svc := newTestService(repo, store)
	proj := testProject()

	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "app.js", ParentPath: "/assets"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing parent must be rejected, got %v", err)
	}

	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "notes.txt", Content: strptr("x")}); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "app.js", ParentPath: "/notes.txt"}); !errors.Is(err, ErrParentNotDirectory) {
		t.Fatalf("file parent must be rejected, got %v", err)
	}

	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "assets", IsDirectory: true}); err != nil {
		t.Fatalf("create directory: %v", err)
	}
	node, err := svc.Create(context.Background(), proj, CreateInput{Name: "app.js", ParentPath: "/assets", Content: strptr("js")})
	if err != nil {
		t.Fatalf("nested create failed: %v", err)
	}
	if node.Path != "/assets/app.js" {
		t.Fatalf("unexpected nested path %q", node.Path)
	}
}

func TestUpdateContentRefreshesMirror(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{}}
	svc := newTestService(newStubFileRepository(), store)
	proj := testProject()

	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "style.css", Content: strptr("old")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateContent(context.Background(), proj, "/style.css", strptr("new")); err != nil {
		t.Fatalf("UpdateContent returned error: %v", err)
	}
	mirrored, err := store.Get(context.Background(), "owner-1/site/style.css")
	if err != nil {
		t.Fatalf("mirror missing: %v", err)
	}
	if string(mirrored) != "new" {
		t.Fatalf("mirror not refreshed, got %q", mirrored)
	}
}

func TestDeleteRemovesMirrorAndGuardsNonEmptyDirectories(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{}}
	svc := newTestService(newStubFileRepository(), store)
	proj := testProject()

	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "assets", IsDirectory: true}); err != nil {
		t.Fatalf("create directory: %v", err)
	}
	if _, err := svc.Create(context.Background(), proj, CreateInput{Name: "app.js", ParentPath: "/assets", Content: strptr("js")}); err != nil {
		t.Fatalf("create file: %v", err)
	}

	if err := svc.Delete(context.Background(), proj, "/assets"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("non-empty directory delete must be rejected, got %v", err)
	}

	if err := svc.Delete(context.Background(), proj, "/assets/app.js"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := store.Get(context.Background(), "owner-1/site/assets/app.js"); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("mirror must be removed, got %v", err)
	}
	if err := svc.Delete(context.Background(), proj, "/assets"); err != nil {
		t.Fatalf("empty directory delete failed: %v", err)
	}
}
