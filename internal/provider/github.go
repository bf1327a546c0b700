// Package provider talks to git hosting providers on behalf of a user.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// GitHub is the provider type reported for GitHub tokens.
const GitHub = "github"

const publicDomain = "github.com"

var ErrMissingToken = errors.New("missing provider token")

// Repository is the subset of a created repository the API returns.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

// CreateRepositoryOptions describes a repository created under the token
// owner's account.
type CreateRepositoryOptions struct {
	Name        string
	Description string
	Private     bool
}

// GitHubClient builds a per-token go-github client for github.com or a
// GitHub Enterprise host.
type GitHubClient struct {
	baseDomain string
	apiURL     string
}

type Option func(*GitHubClient)

// WithAPIURL points the client at an explicit REST root, e.g. a test server.
func WithAPIURL(apiURL string) Option {
	return func(c *GitHubClient) {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		c.apiURL = apiURL
	}
}

func NewGitHubClient(baseDomain string, opts ...Option) *GitHubClient {
	c := &GitHubClient{baseDomain: strings.TrimSpace(baseDomain)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GitHubClient) client(ctx context.Context, token string) (*github.Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	switch {
	case c.apiURL != "":
		baseURL, err := url.Parse(c.apiURL)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		client.BaseURL = baseURL
		client.UploadURL = baseURL
	case c.baseDomain != "" && c.baseDomain != publicDomain:
		host := "https://" + strings.TrimSuffix(c.baseDomain, "/")
		enterprise, err := client.WithEnterpriseURLs(host+"/api/v3/", host+"/api/uploads/")
		if err != nil {
			return nil, fmt.Errorf("configure github enterprise %s: %w", c.baseDomain, err)
		}
		client = enterprise
	}
	return client, nil
}

// VerifyAccess succeeds when the token can read its own user.
func (c *GitHubClient) VerifyAccess(ctx context.Context, token string) error {
	client, err := c.client(ctx, token)
	if err != nil {
		return err
	}
	if _, _, err := client.Users.Get(ctx, ""); err != nil {
		return fmt.Errorf("verify github access: %w", err)
	}
	return nil
}

func (c *GitHubClient) CreateRepository(ctx context.Context, token string, opts CreateRepositoryOptions) (Repository, error) {
	client, err := c.client(ctx, token)
	if err != nil {
		return Repository{}, err
	}
	repo := &github.Repository{
		Name:    github.String(opts.Name),
		Private: github.Bool(opts.Private),
	}
	if opts.Description != "" {
		repo.Description = github.String(opts.Description)
	}

	created, _, err := client.Repositories.Create(ctx, "", repo)
	if err != nil {
		return Repository{}, fmt.Errorf("create github repository %s: %w", opts.Name, err)
	}
	return Repository{
		Name:     created.GetName(),
		FullName: created.GetFullName(),
		HTMLURL:  created.GetHTMLURL(),
		CloneURL: created.GetCloneURL(),
		Private:  created.GetPrivate(),
	}, nil
}

// StatusCode returns the HTTP status GitHub answered with, or 0 when err did
// not come from a GitHub response.
func StatusCode(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return http.StatusForbidden
	}
	return 0
}

// Message extracts GitHub's error message, falling back to err.Error().
func Message(err error) string {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Message != "" {
		if len(errResp.Errors) > 0 && errResp.Errors[0].Message != "" {
			return errResp.Message + ": " + errResp.Errors[0].Message
		}
		return errResp.Message
	}
	return err.Error()
}

// GitCredentialEnv returns environment entries that make git send token as
// HTTP basic auth to the provider host. The token stays out of argv and out of
// the repository's config.
func GitCredentialEnv(baseDomain, token string) []string {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	domain := strings.TrimSuffix(strings.TrimSpace(baseDomain), "/")
	if domain == "" {
		domain = publicDomain
	}
	basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.https://" + domain + "/.extraheader",
		"GIT_CONFIG_VALUE_0=AUTHORIZATION: basic " + basic,
	}
}
