package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"
)

// Commit status states used by the audit.
const (
	StateSuccess = "success"
	StateFailure = "failure"
)

// maxDescriptionLen is the GitHub limit for status descriptions.
const maxDescriptionLen = 140

// StatusRequest describes one commit status to publish.
type StatusRequest struct {
	// Repo is OWNER/REPO.
	Repo        string
	SHA         string
	State       string
	Context     string
	Description string
	TargetURL   string
}

// PublishStatus creates a commit status on req.SHA.
func (c *Client) PublishStatus(ctx context.Context, req StatusRequest) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("publish status: github client is nil")
	}
	owner, repo, ok := strings.Cut(req.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("publish status: invalid repository %q (expected OWNER/REPO)", req.Repo)
	}
	if strings.TrimSpace(req.SHA) == "" {
		return fmt.Errorf("publish status: commit SHA is required")
	}

	status := &github.RepoStatus{
		State:       github.Ptr(req.State),
		Context:     github.Ptr(req.Context),
		Description: github.Ptr(truncate(req.Description, maxDescriptionLen)),
	}
	if req.TargetURL != "" {
		status.TargetURL = github.Ptr(req.TargetURL)
	}

	u := fmt.Sprintf("repos/%v/%v/statuses/%v", owner, repo, req.SHA)
	httpReq, err := c.Client.NewRequest(http.MethodPost, u, status)
	if err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	if _, err := c.Client.Do(ctx, httpReq, nil); err != nil {
		return fmt.Errorf("publish status to %s@%s: %w", req.Repo, shortSHA(req.SHA), err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
