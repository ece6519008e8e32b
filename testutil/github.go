// Package testutil provides a fake GitHub contents API for package tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ua-community/phenomena/store"
)

// MockGitHubServer serves the subset of the GitHub REST API used by the archive,
// backed by an in-memory store with real sha preconditions.
type MockGitHubServer struct {
	*httptest.Server
	Files *store.Memory

	Owner, Repo string
	// LargeFiles makes GET omit inline content so clients must follow download_url.
	LargeFiles bool

	mu       sync.Mutex
	requests []string
	auth     string
	messages []string
}

// NewMockGitHubServer starts a server for owner/repo and closes it on test cleanup.
func NewMockGitHubServer(t *testing.T, owner, repo string) *MockGitHubServer {
	t.Helper()
	m := &MockGitHubServer{Files: store.NewMemory(), Owner: owner, Repo: repo}

	mux := http.NewServeMux()
	prefix := "/repos/" + owner + "/" + repo
	mux.HandleFunc("GET "+prefix+"/contents/{path...}", m.handleGet)
	mux.HandleFunc("PUT "+prefix+"/contents/{path...}", m.handlePut)
	mux.HandleFunc("DELETE "+prefix+"/contents/{path...}", m.handleDelete)
	mux.HandleFunc("GET "+prefix, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"default_branch": "main"})
	})
	mux.HandleFunc("GET "+prefix+"/branches/{branch}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"name": r.PathValue("branch"), "commit": map[string]string{"sha": "head"}})
	})
	mux.HandleFunc("GET "+prefix+"/git/trees/{sha}", m.handleTree)
	mux.HandleFunc("GET /raw/{path...}", m.handleRaw)

	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.Path)
		m.auth = r.Header.Get("Authorization")
		m.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns "METHOD /path" for every request received so far.
func (m *MockGitHubServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// LastAuthorization returns the Authorization header of the latest request.
func (m *MockGitHubServer) LastAuthorization() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth
}

// CommitMessages returns the commit messages of accepted writes and deletes.
func (m *MockGitHubServer) CommitMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

// wrap64 mimics GitHub's 60-column base64 line wrapping.
func wrap64(s string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	var b strings.Builder
	for len(enc) > 60 {
		b.WriteString(enc[:60])
		b.WriteByte('\n')
		enc = enc[60:]
	}
	b.WriteString(enc)
	return b.String()
}

func (m *MockGitHubServer) handleGet(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	f, err := m.Files.Get(r.Context(), path)
	if err != nil {
		notFound(w)
		return
	}
	body := map[string]any{
		"type":         "file",
		"path":         path,
		"sha":          f.SHA,
		"size":         len(f.Content),
		"content":      wrap64(f.Content),
		"encoding":     "base64",
		"download_url": m.URL + "/raw/" + path,
	}
	if m.LargeFiles {
		body["content"] = ""
		body["encoding"] = "none"
	}
	writeJSON(w, http.StatusOK, body)
}

func (m *MockGitHubServer) handleRaw(w http.ResponseWriter, r *http.Request) {
	f, err := m.Files.Get(r.Context(), r.PathValue("path"))
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(f.Content))
}

func (m *MockGitHubServer) handlePut(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}
	_, getErr := m.Files.Get(r.Context(), path)
	sha, err := m.Files.Put(r.Context(), path, string(raw), body.Message, body.SHA)
	switch {
	case err == nil:
	case body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
		return
	default:
		writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + body.SHA})
		return
	}
	m.mu.Lock()
	m.messages = append(m.messages, body.Message)
	m.mu.Unlock()
	status := http.StatusCreated
	if getErr == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"content": map[string]string{"path": path, "sha": sha}})
}

func (m *MockGitHubServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	var body struct {
		Message string `json:"message"`
		SHA     string `json:"sha"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.SHA == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
		return
	}
	if err := m.Files.Delete(r.Context(), path, body.Message, body.SHA); err != nil {
		if store.IsNotFound(err) {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + body.SHA})
		return
	}
	m.mu.Lock()
	m.messages = append(m.messages, body.Message)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"content": nil})
}

func (m *MockGitHubServer) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("recursive") != "1" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected recursive=1"})
		return
	}
	type entry struct {
		Path string `json:"path"`
		Type string `json:"type"`
	}
	tree := []entry{}
	dirs := map[string]bool{}
	for _, p := range m.Files.Paths() {
		if i := strings.LastIndex(p, "/"); i > 0 && !dirs[p[:i]] {
			dirs[p[:i]] = true
			tree = append(tree, entry{Path: p[:i], Type: "tree"})
		}
		tree = append(tree, entry{Path: p, Type: "blob"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sha": r.PathValue("sha"), "tree": tree, "truncated": false})
}
