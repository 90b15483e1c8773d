// Package githost talks to the source-control host (GitHub REST v3).
// Non-2xx answers and transport failures come back as *apierr.Error; retry
// is left to callers.
package githost

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/ontorelease/internal/platform/apierr"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

// Repo is an owner/name pair such as "HumanBehaviourChangeProject/ontologies".
type Repo string

func (r Repo) split() (string, string) {
	owner, name, _ := strings.Cut(string(r), "/")
	return owner, name
}

type File struct {
	Path    string
	SHA     string
	Content []byte
}

type Release struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
}

// Client is the part of the host the release pipeline consumes.
type Client interface {
	DefaultBranch(ctx context.Context, repo Repo) (string, error)
	GetFile(ctx context.Context, repo Repo, path, ref string) (*File, error)
	ListTree(ctx context.Context, repo Repo, ref string) ([]string, error)
	ListBranches(ctx context.Context, repo Repo) ([]string, error)
	CreateBranch(ctx context.Context, repo Repo, branch, fromRef string) error
	CommitFile(ctx context.Context, repo Repo, branch, path string, content []byte, message string) error
	OpenPullRequest(ctx context.Context, repo Repo, head, base, title, body string) (*PullRequest, error)
	MergePullRequest(ctx context.Context, repo Repo, number int, message string) error
	ListReleases(ctx context.Context, repo Repo) ([]Release, error)
	CreateRelease(ctx context.Context, repo Repo, tag, name, target, body string) (*Release, error)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type client struct {
	log        *logger.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(cfg Config, log *logger.Logger) Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.github.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &client{
		log:        log.With("client", "GitHost"),
		baseURL:    base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierr.Wrap(err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return apierr.Wrap(readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("githost request failed", "method", method, "path", path, "status", resp.StatusCode)
		return apierr.New(resp.StatusCode, string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("githost decode %s: %w", path, err)
	}
	return nil
}

func repoPath(repo Repo, suffix string) string {
	owner, name := repo.split()
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name) + suffix
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func (c *client) DefaultBranch(ctx context.Context, repo Repo) (string, error) {
	var out struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.do(ctx, http.MethodGet, repoPath(repo, ""), nil, &out); err != nil {
		return "", err
	}
	return out.DefaultBranch, nil
}

func (c *client) GetFile(ctx context.Context, repo Repo, path, ref string) (*File, error) {
	p := repoPath(repo, "/contents/"+escapePath(path))
	if ref != "" {
		p += "?ref=" + url.QueryEscape(ref)
	}
	var out struct {
		Path        string `json:"path"`
		SHA         string `json:"sha"`
		Content     string `json:"content"`
		Encoding    string `json:"encoding"`
		DownloadURL string `json:"download_url"`
	}
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	f := &File{Path: out.Path, SHA: out.SHA}
	if out.Encoding == "base64" && out.Content != "" {
		b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("githost decode content of %s: %w", path, err)
		}
		f.Content = b
		return f, nil
	}
	// Large files come without inline content.
	if out.DownloadURL != "" {
		b, err := c.download(ctx, out.DownloadURL)
		if err != nil {
			return nil, err
		}
		f.Content = b
	}
	return f, nil
}

func (c *client) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.New(resp.StatusCode, string(b))
	}
	return b, nil
}

func (c *client) ListTree(ctx context.Context, repo Repo, ref string) ([]string, error) {
	var out struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}
	if err := c.do(ctx, http.MethodGet, repoPath(repo, "/git/trees/"+url.PathEscape(ref)+"?recursive=1"), nil, &out); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(out.Tree))
	for _, e := range out.Tree {
		if e.Type == "blob" {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

func (c *client) ListBranches(ctx context.Context, repo Repo) ([]string, error) {
	var out []struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, repoPath(repo, "/branches?per_page=100"), nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, len(out))
	for i, b := range out {
		names[i] = b.Name
	}
	return names, nil
}

func (c *client) CreateBranch(ctx context.Context, repo Repo, branch, fromRef string) error {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := c.do(ctx, http.MethodGet, repoPath(repo, "/git/ref/heads/"+escapePath(fromRef)), nil, &ref); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, repoPath(repo, "/git/refs"), map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": ref.Object.SHA,
	}, nil)
}

func (c *client) CommitFile(ctx context.Context, repo Repo, branch, path string, content []byte, message string) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	// Updating an existing file needs its blob sha.
	existing, err := c.GetFile(ctx, repo, path, branch)
	switch {
	case err == nil:
		body["sha"] = existing.SHA
	case apierr.Status(err) == http.StatusNotFound:
	default:
		return err
	}
	return c.do(ctx, http.MethodPut, repoPath(repo, "/contents/"+escapePath(path)), body, nil)
}

func (c *client) OpenPullRequest(ctx context.Context, repo Repo, head, base, title, body string) (*PullRequest, error) {
	var pr PullRequest
	err := c.do(ctx, http.MethodPost, repoPath(repo, "/pulls"), map[string]string{
		"title": title,
		"head":  head,
		"base":  base,
		"body":  body,
	}, &pr)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (c *client) MergePullRequest(ctx context.Context, repo Repo, number int, message string) error {
	return c.do(ctx, http.MethodPut, repoPath(repo, fmt.Sprintf("/pulls/%d/merge", number)), map[string]string{
		"commit_title": message,
		"merge_method": "merge",
	}, nil)
}

func (c *client) ListReleases(ctx context.Context, repo Repo) ([]Release, error) {
	var out []Release
	if err := c.do(ctx, http.MethodGet, repoPath(repo, "/releases?per_page=100"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) CreateRelease(ctx context.Context, repo Repo, tag, name, target, body string) (*Release, error) {
	var out Release
	err := c.do(ctx, http.MethodPost, repoPath(repo, "/releases"), map[string]any{
		"tag_name":         tag,
		"name":             name,
		"target_commitish": target,
		"body":             body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
