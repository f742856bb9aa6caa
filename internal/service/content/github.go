package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/repodash/repodash/pkg/types"
)

// DefaultBaseURL is the public GitHub REST API endpoint.
const DefaultBaseURL = "https://api.github.com"

const acceptHeader = "application/vnd.github+json"

// GitHubStore implements Store against the GitHub contents and commits APIs.
type GitHubStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewGitHubStore creates a GitHubStore. baseURL is usually DefaultBaseURL;
// tests point it at a local server. A nil httpClient falls back to
// http.DefaultClient.
func NewGitHubStore(baseURL string, httpClient *http.Client) *GitHubStore {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GitHubStore{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// contentResponse is the subset of GitHub's contents API response we consume.
type contentResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// commitResponse is the subset of GitHub's commits API response we consume.
type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

func (g *GitHubStore) FetchCurrent(ctx context.Context, target types.TargetDescriptor) (*types.Snapshot, error) {
	var file contentResponse
	path := fmt.Sprintf("/repos/%s/contents/%s", target.Repo, target.FilePath)
	if err := g.get(ctx, target, path, nil, &file); err != nil {
		return nil, err
	}

	decoded, err := decodeContent(file.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable content for %s: %v", ErrRemoteUnavailable, target.Key, err)
	}

	snap := &types.Snapshot{
		Content:    decoded,
		VersionTag: file.SHA,
	}

	// The last-modified timestamp comes from the newest history entry.
	// It is display metadata only, so a failure here does not fail the fetch.
	if history, err := g.FetchHistory(ctx, target, 1, 1); err == nil && len(history) > 0 {
		snap.LastModified = history[0].Date
	}

	return snap, nil
}

func (g *GitHubStore) FetchHistory(ctx context.Context, target types.TargetDescriptor, page, pageSize int) ([]types.HistoryEntry, error) {
	query := url.Values{
		"path":     {target.FilePath},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(pageSize)},
	}
	var commits []commitResponse
	path := fmt.Sprintf("/repos/%s/commits", target.Repo)
	if err := g.get(ctx, target, path, query, &commits); err != nil {
		return nil, err
	}

	entries := make([]types.HistoryEntry, len(commits))
	for i, c := range commits {
		entries[i] = types.HistoryEntry{
			VersionID: c.SHA,
			Message:   c.Commit.Message,
			Author:    c.Commit.Author.Name,
			Date:      c.Commit.Committer.Date,
		}
	}
	return entries, nil
}

func (g *GitHubStore) FetchContentAtVersion(ctx context.Context, target types.TargetDescriptor, versionID string) ([]byte, error) {
	var file contentResponse
	path := fmt.Sprintf("/repos/%s/contents/%s", target.Repo, target.FilePath)
	query := url.Values{"ref": {versionID}}
	if err := g.get(ctx, target, path, query, &file); err != nil {
		return nil, err
	}

	decoded, err := decodeContent(file.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable content for %s at %s: %v", ErrRemoteUnavailable, target.Key, versionID, err)
	}
	return decoded, nil
}

func (g *GitHubStore) Write(ctx context.Context, target types.TargetDescriptor, newContent []byte, expectedVersionTag, message string) (string, error) {
	body, err := json.Marshal(writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(newContent),
		SHA:     expectedVersionTag,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode write request: %w", err)
	}

	u := fmt.Sprintf("%s/repos/%s/contents/%s", g.baseURL, target.Repo, target.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create write request: %w", err)
	}
	setHeaders(req, target)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var out writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: undecodable write response: %v", ErrRemoteUnavailable, err)
	}
	return out.Content.SHA, nil
}

func (g *GitHubStore) get(ctx context.Context, target types.TargetDescriptor, path string, query url.Values, out any) error {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setHeaders(req, target)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: undecodable response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

func setHeaders(req *http.Request, target types.TargetDescriptor) {
	req.Header.Set("Authorization", "Bearer "+target.Token)
	req.Header.Set("Accept", acceptHeader)
}

// checkStatus maps GitHub's failure modes onto the client's error taxonomy.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := remoteErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		// GitHub rejects writes carrying a stale blob sha with 409.
		return fmt.Errorf("%w: %s", ErrVersionConflict, msg)
	case http.StatusUnprocessableEntity:
		// A 422 mentioning the sha is the contents API's other spelling of
		// the same optimistic-concurrency rejection.
		if strings.Contains(strings.ToLower(msg), "sha") {
			return fmt.Errorf("%w: %s", ErrVersionConflict, msg)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, msg)
	}
}

func remoteErrorMessage(body io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(b))
}

// decodeContent decodes the contents API's base64 payload, which GitHub
// wraps with newlines.
func decodeContent(encoded string) ([]byte, error) {
	cleaned := strings.ReplaceAll(encoded, "\n", "")
	return base64.StdEncoding.DecodeString(cleaned)
}
