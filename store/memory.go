package store

import (
	"context"
	"crypto/sha1" //nolint:gosec // G505: git blob ids are sha1 by definition
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store with the same precondition semantics as the
// remote one. Version tokens are git blob ids of the content.
type Memory struct {
	mu     sync.Mutex
	files  map[string]File
	gets   int
	puts   int
	failed int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]File)}
}

// BlobSHA returns the git blob id for content.
func BlobSHA(content string) string {
	h := sha1.New() //nolint:gosec // G401: see import
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, path string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w: %v", path, ErrNetwork, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return &f, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, path, content, message, sha string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("put %s: %w: %v", path, ErrNetwork, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.files[path]
	switch {
	case exists && sha == "":
		m.failed++
		return "", fmt.Errorf("put %s: %w: sha wasn't supplied", path, ErrConflict)
	case exists && sha != cur.SHA:
		m.failed++
		return "", fmt.Errorf("put %s: %w: %s does not match %s", path, ErrConflict, sha, cur.SHA)
	case !exists && sha != "":
		m.failed++
		return "", fmt.Errorf("put %s: %w: sha supplied for absent file", path, ErrConflict)
	}
	m.puts++
	newSHA := BlobSHA(content)
	m.files[path] = File{Path: path, Content: content, SHA: newSHA}
	return newSHA, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, path, message, sha string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w: %v", path, ErrNetwork, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.files[path]
	if !ok {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	if sha != "" && sha != cur.SHA {
		return fmt.Errorf("delete %s: %w", path, ErrConflict)
	}
	delete(m.files, path)
	return nil
}

// Seed commits content at path without counting it as a write.
func (m *Memory) Seed(path, content string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sha := BlobSHA(content)
	m.files[path] = File{Path: path, Content: content, SHA: sha}
	return sha
}

// Paths lists committed paths in lexical order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Reads returns the number of Get calls served.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Writes returns the number of successful Put calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Rejected returns the number of Put calls refused by a precondition.
func (m *Memory) Rejected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}
