package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBranch returns the repository's default branch. It doubles as a
// cheap reachability probe.
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, "repo", http.MethodGet, c.repoURL(), nil)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", apiError("repo", resp, nil)
	}
	var body struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("repo: decode: %w", err)
	}
	if body.DefaultBranch == "" {
		return "", fmt.Errorf("repo: empty default_branch")
	}
	return body.DefaultBranch, nil
}

// Ping reports whether the repository is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.DefaultBranch(ctx)
	return err
}

func (c *Client) branchHead(ctx context.Context, branch string) (string, error) {
	resp, err := c.do(ctx, "branch", http.MethodGet, c.repoURL("branches", url.PathEscape(branch)), nil)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", apiError("branch "+branch, resp, nil)
	}
	var body struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("branch %s: decode: %w", branch, err)
	}
	return body.Commit.SHA, nil
}

// ListTree returns the paths of every blob on the default branch whose path
// starts with prefix and ends with suffix.
func (c *Client) ListTree(ctx context.Context, prefix, suffix string) ([]string, error) {
	branch, err := c.DefaultBranch(ctx)
	if err != nil {
		return nil, err
	}
	head, err := c.branchHead(ctx, branch)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, "tree", http.MethodGet, c.repoURL("git", "trees", url.PathEscape(head))+"?recursive=1", nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("tree "+head, resp, nil)
	}
	var body struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tree %s: decode: %w", head, err)
	}
	var out []string
	for _, item := range body.Tree {
		if item.Type == "blob" && strings.HasPrefix(item.Path, prefix) && strings.HasSuffix(item.Path, suffix) {
			out = append(out, item.Path)
		}
	}
	if body.Truncated {
		return out, fmt.Errorf("tree %s: listing truncated after %d entries", head, len(body.Tree))
	}
	return out, nil
}
