package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ua-community/phenomena/store"
)

type contentResponse struct {
	Type        string `json:"type"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int    `json:"size"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
}

// Get reads a file and its version token. A missing path is store.ErrNotFound.
func (c *Client) Get(ctx context.Context, path string) (*store.File, error) {
	op := "get " + path
	resp, err := c.do(ctx, "get", http.MethodGet, c.repoURL("contents", escapePath(path)), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer closeBody(resp)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apiError(op, resp, store.ErrNotFound)
	default:
		return nil, apiError(op, resp, nil)
	}

	var body contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if body.Type != "" && body.Type != "file" {
		return nil, fmt.Errorf("%s: not a file (type %q)", op, body.Type)
	}

	f := &store.File{Path: path, SHA: body.SHA, DownloadURL: body.DownloadURL}
	switch {
	case body.Encoding == "base64":
		raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("%s: decode content: %w", op, err)
		}
		f.Content = string(raw)
	case body.Size > 0 && body.DownloadURL != "":
		// Files above the inline limit come back with encoding "none".
		raw, err := c.download(ctx, body.DownloadURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		f.Content = raw
	default:
		f.Content = body.Content
	}
	return f, nil
}

func (c *Client) download(ctx context.Context, target string) (string, error) {
	resp, err := c.do(ctx, "download", http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", apiError("download", resp, nil)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("download: %w: %v", store.ErrNetwork, err)
	}
	return string(b), nil
}

// Put creates path (sha empty) or replaces it (sha = current version token).
// GitHub answers 422 when sha is missing for an existing file and 409 when it
// is stale; both surface as store.ErrConflict.
func (c *Client) Put(ctx context.Context, path, content, message, sha string) (string, error) {
	op := "put " + path
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if sha != "" {
		body["sha"] = sha
	}
	resp, err := c.do(ctx, "put", http.MethodPut, c.repoURL("contents", escapePath(path)), body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer closeBody(resp)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", apiError(op, resp, store.ErrConflict)
	case http.StatusNotFound:
		return "", apiError(op, resp, store.ErrNotFound)
	default:
		return "", apiError(op, resp, nil)
	}
	var out struct {
		Content struct {
			SHA string `json:"sha"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decode: %w", op, err)
	}
	return out.Content.SHA, nil
}

// Delete removes path. When sha is empty the current version token is read first.
func (c *Client) Delete(ctx context.Context, path, message, sha string) error {
	op := "delete " + path
	if sha == "" {
		f, err := c.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("%s: could not get sha: %w", op, err)
		}
		sha = f.SHA
	}
	if message == "" {
		message = "Delete " + path
	}
	resp, err := c.do(ctx, "delete", http.MethodDelete, c.repoURL("contents", escapePath(path)),
		map[string]string{"message": message, "sha": sha})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeBody(resp)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return apiError(op, resp, store.ErrNotFound)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return apiError(op, resp, store.ErrConflict)
	default:
		return apiError(op, resp, nil)
	}
}
