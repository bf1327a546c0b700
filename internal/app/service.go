package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mojocode/api/internal/auth"
	"mojocode/api/internal/config"
	"mojocode/api/internal/gitcli"
	"mojocode/api/internal/llm"
	"mojocode/api/internal/logger"
	"mojocode/api/internal/provider"
	"mojocode/api/internal/search"
	"mojocode/api/internal/session"
	"mojocode/api/internal/shell"
	"mojocode/api/internal/store"
	"mojocode/api/internal/workspace"
)

const exportCommitMessage = "Initial commit by MojoCode"

type dataStore interface {
	Ping(ctx context.Context) error
	LoadSettings(ctx context.Context, userID string) (store.Settings, error)
	StoreSettings(ctx context.Context, userID string, settings store.Settings) error
	LoadSecrets(ctx context.Context, userID string) (store.UserSecrets, error)
	StoreSecrets(ctx context.Context, userID string, secrets store.UserSecrets) error
	SaveConversation(ctx context.Context, meta store.ConversationMetadata) error
	GetConversation(ctx context.Context, userID, conversationID string) (store.ConversationMetadata, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	ConversationExists(ctx context.Context, userID, conversationID string) (bool, error)
	SearchConversations(ctx context.Context, userID, pageID string, limit int) (store.ConversationPage, error)
}

// gitRunner is the part of gitcli.Handler the routes drive.
type gitRunner interface {
	SetWorkingDirectory(path string)
	CurrentBranch(ctx context.Context) (string, error)
	RepositoryChanges(ctx context.Context) ([]gitcli.FileChange, bool, error)
	FileDiff(ctx context.Context, path string) (gitcli.Diff, error)
	CloneRepository(ctx context.Context, url, localPath string) (bool, error)
	InitRepository(ctx context.Context, localPath string) (bool, error)
	CommitAll(ctx context.Context, localPath, message string) (bool, error)
	AddRemote(ctx context.Context, localPath, remoteName, remoteURL string) (bool, error)
	PushToRemote(ctx context.Context, localPath, remoteName, branchName string) (bool, error)
}

type repoHost interface {
	VerifyAccess(ctx context.Context, token string) error
	CreateRepository(ctx context.Context, token string, opts provider.CreateRepositoryOptions) (provider.Repository, error)
}

type completer interface {
	CreateResponse(ctx context.Context, cfg llm.Config, prompt, instructions string) (llm.Response, error)
}

type conversationIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexConversation(record search.ConversationRecord)
	DeleteConversation(id string)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators wired by the serve command. Sessions,
// LLM and Search may be nil.
type Dependencies struct {
	Store     *store.PostgresStore
	Sessions  *session.RedisStore
	Verifier  auth.Verifier
	Workspace *workspace.Service
	LLM       *llm.Client
	Search    *search.Service
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  pinger
	verifier  auth.Verifier
	workspace *workspace.Service
	newGit    func(env ...string) gitRunner
	github    func(host string) repoHost
	llm       completer
	search    conversationIndex
	log       *slog.Logger
}

func New(cfg config.Config, deps Dependencies) *Service {
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		verifier:  deps.Verifier,
		workspace: deps.Workspace,
		log:       logger.WithComponent("app"),
	}
	if deps.Sessions != nil {
		s.sessions = deps.Sessions
	}
	if deps.LLM != nil {
		s.llm = deps.LLM
	}
	if deps.Search != nil {
		s.search = deps.Search
	}
	s.newGit = func(env ...string) gitRunner {
		executor := shell.NewExecExecutor(append(cfg.GitEnv(), env...)...)
		return gitcli.NewHandler(executor, cfg.CommandTimeout)
	}
	s.github = func(host string) repoHost {
		if strings.TrimSpace(host) == "" {
			host = cfg.GitHubBaseDomain
		}
		return provider.NewGitHubClient(host)
	}
	return s
}

// Ping checks the database and, when configured, Redis.
func (s *Service) Ping(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.store.Ping(ctx)}
	if s.sessions != nil {
		checks["redis"] = s.sessions.Ping(ctx)
	}
	return checks
}

func (s *Service) Authenticate(ctx context.Context, token string) (auth.User, error) {
	if s.verifier == nil {
		return auth.User{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication is not configured", nil)
	}
	user, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return auth.User{}, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return auth.User{}, auth.ErrInvalidToken
	}
	return user, nil
}

// Repository import / export

type ImportResult struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Path    string `json:"path"`
}

func (s *Service) ImportRepository(ctx context.Context, user auth.User, repoURL string) (ImportResult, error) {
	repoURL = strings.TrimSpace(repoURL)
	if !strings.HasSuffix(repoURL, ".git") {
		return ImportResult{}, domainError(http.StatusBadRequest, "INVALID_REPOSITORY_URL", "Invalid repository URL. Must end with .git", nil)
	}
	name := workspace.RepositoryNameFromURL(repoURL)
	if name == "" {
		return ImportResult{}, domainError(http.StatusBadRequest, "INVALID_REPOSITORY_NAME", "Could not determine repository name from URL.", nil)
	}
	userDir, err := s.workspace.UserDir(user.ID)
	if err != nil {
		return ImportResult{}, err
	}
	path, err := s.workspace.ProjectPath(user.ID, name)
	if err != nil {
		return ImportResult{}, err
	}

	unlock := s.workspace.Lock(path)
	defer unlock()

	if _, err := os.Stat(path); err == nil {
		return ImportResult{}, domainError(http.StatusConflict, "REPOSITORY_EXISTS",
			fmt.Sprintf("Repository '%s' already exists in your workspace.", name), map[string]any{"path": name})
	}

	git := s.newGit(s.providerCredentials(ctx, user.ID)...)
	git.SetWorkingDirectory(userDir)
	ok, err := git.CloneRepository(ctx, repoURL, path)
	if err != nil || !ok {
		if cleanupErr := s.workspace.RemoveProject(path); cleanupErr != nil {
			s.log.Warn("cleanup partial clone", "path", path, "error", cleanupErr)
		}
		if errors.Is(err, shell.ErrTimeout) {
			return ImportResult{}, domainError(http.StatusGatewayTimeout, "CLONE_TIMEOUT",
				fmt.Sprintf("Timed out cloning repository '%s'.", repoURL), nil)
		}
		if err != nil {
			s.log.Error("clone repository", "user_id", user.ID, "error", err)
		}
		return ImportResult{}, domainError(http.StatusInternalServerError, "CLONE_FAILED",
			fmt.Sprintf("Failed to clone repository '%s'.", repoURL), nil)
	}

	s.log.Info("repository imported", "user_id", user.ID, "project", name)
	return ImportResult{
		Message: fmt.Sprintf("Repository '%s' imported successfully to '%s'.", repoURL, name),
		Details: "Local path: " + name,
		Path:    name,
	}, nil
}

type ExportInput struct {
	ProjectPath string `json:"project_path"`
	RepoName    string `json:"repo_name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

type ExportResult struct {
	Message  string `json:"message"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
	Details  string `json:"details"`
}

func (s *Service) ExportRepository(ctx context.Context, user auth.User, input ExportInput) (ExportResult, error) {
	if strings.TrimSpace(input.RepoName) == "" {
		return ExportResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "repo_name is required", nil)
	}
	path, err := s.workspace.ProjectDir(user.ID, input.ProjectPath)
	if err != nil {
		return ExportResult{}, err
	}
	token, err := s.githubToken(ctx, user.ID)
	if err != nil {
		return ExportResult{}, err
	}

	unlock := s.workspace.Lock(path)
	defer unlock()

	git := s.newGit(provider.GitCredentialEnv(s.hostOrDefault(token.Host), token.Token)...)
	if ok, err := git.InitRepository(ctx, path); err != nil || !ok {
		return ExportResult{}, stepFailure(err, "INIT_FAILED", "Failed to initialize Git repository.")
	}
	if ok, err := git.CommitAll(ctx, path, exportCommitMessage); err != nil || !ok {
		return ExportResult{}, stepFailure(err, "COMMIT_FAILED", "Failed to add and commit files.")
	}

	created, err := s.github(token.Host).CreateRepository(ctx, token.Token, provider.CreateRepositoryOptions{
		Name:        input.RepoName,
		Description: input.Description,
		Private:     input.Private,
	})
	if err != nil {
		status := provider.StatusCode(err)
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return ExportResult{}, domainError(status, "GITHUB_API_ERROR", "GitHub API error: "+provider.Message(err), nil)
	}
	if created.CloneURL == "" {
		return ExportResult{}, domainError(http.StatusInternalServerError, "GITHUB_API_ERROR", "Failed to get clone URL from GitHub response.", nil)
	}

	if ok, err := git.AddRemote(ctx, path, "origin", created.CloneURL); err != nil || !ok {
		return ExportResult{}, stepFailure(err, "REMOTE_FAILED", "Failed to add remote 'origin'.")
	}
	branch := s.pushBranch(ctx, git, path)
	if ok, err := git.PushToRemote(ctx, path, "origin", branch); err != nil || !ok {
		return ExportResult{}, stepFailure(err, "PUSH_FAILED", fmt.Sprintf("Failed to push to remote 'origin %s'.", branch))
	}

	s.log.Info("repository exported", "user_id", user.ID, "repository", created.FullName)
	return ExportResult{
		Message:  fmt.Sprintf("Repository '%s' exported successfully to GitHub as '%s'.", input.ProjectPath, input.RepoName),
		HTMLURL:  created.HTMLURL,
		CloneURL: created.CloneURL,
		Details:  fmt.Sprintf("GitHub repository '%s' created and local project pushed.", created.HTMLURL),
	}, nil
}

// pushBranch is the project's checked-out branch, or main when it cannot be
// read.
func (s *Service) pushBranch(ctx context.Context, git gitRunner, path string) string {
	git.SetWorkingDirectory(path)
	branch, err := git.CurrentBranch(ctx)
	branch = strings.TrimSpace(branch)
	if err != nil || branch == "" || branch == "HEAD" {
		return "main"
	}
	return branch
}

func stepFailure(err error, code, message string) error {
	if errors.Is(err, shell.ErrTimeout) {
		return domainError(http.StatusGatewayTimeout, "COMMAND_TIMEOUT", message, nil)
	}
	if errors.Is(err, gitcli.ErrInvalidArgument) {
		return domainError(http.StatusBadRequest, "INVALID_ARGUMENT", message, nil)
	}
	return domainError(http.StatusInternalServerError, code, message, nil)
}

func (s *Service) githubToken(ctx context.Context, userID string) (store.ProviderToken, error) {
	secrets, err := s.store.LoadSecrets(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.ProviderToken{}, err
	}
	token, ok := secrets.ProviderTokens[provider.GitHub]
	if !ok || strings.TrimSpace(token.Token) == "" {
		return store.ProviderToken{}, domainError(http.StatusBadRequest, "GITHUB_TOKEN_MISSING", "No GitHub token is stored for this user.", nil)
	}
	return token, nil
}

// providerCredentials is the git credential environment for the user's stored
// GitHub token, or nothing.
func (s *Service) providerCredentials(ctx context.Context, userID string) []string {
	secrets, err := s.store.LoadSecrets(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("load secrets for clone", "user_id", userID, "error", err)
		}
		return nil
	}
	token := secrets.ProviderTokens[provider.GitHub]
	return provider.GitCredentialEnv(s.hostOrDefault(token.Host), token.Token)
}

func (s *Service) hostOrDefault(host string) string {
	if strings.TrimSpace(host) == "" {
		return s.cfg.GitHubBaseDomain
	}
	return host
}

// Repository inspection

type ChangesResult struct {
	Changes []gitcli.FileChange `json:"changes"`
}

func (s *Service) RepositoryChanges(ctx context.Context, user auth.User, projectPath string) (ChangesResult, error) {
	path, err := s.workspace.ProjectDir(user.ID, projectPath)
	if err != nil {
		return ChangesResult{}, err
	}
	git := s.newGit()
	git.SetWorkingDirectory(path)
	changes, ok, err := git.RepositoryChanges(ctx)
	if err != nil {
		return ChangesResult{}, err
	}
	if !ok {
		return ChangesResult{}, domainError(http.StatusBadRequest, "NOT_A_REPOSITORY", "Project is not a git repository.", map[string]any{"path": projectPath})
	}
	if changes == nil {
		changes = []gitcli.FileChange{}
	}
	return ChangesResult{Changes: changes}, nil
}

func (s *Service) FileDiff(ctx context.Context, user auth.User, projectPath, file string) (gitcli.Diff, error) {
	path, err := s.workspace.ProjectDir(user.ID, projectPath)
	if err != nil {
		return gitcli.Diff{}, err
	}
	file, err = workspace.ResolveInside(path, file)
	if err != nil {
		return gitcli.Diff{}, err
	}
	git := s.newGit()
	git.SetWorkingDirectory(path)
	return git.FileDiff(ctx, file)
}

func (s *Service) ListProjects(user auth.User) ([]workspace.Project, error) {
	return s.workspace.ListProjects(user.ID)
}

// Settings

type SettingsView struct {
	store.Settings
	LLMAPIKeySet bool `json:"llm_api_key_set"`
}

func (s *Service) LoadSettings(ctx context.Context, user auth.User) (SettingsView, error) {
	settings, err := s.store.LoadSettings(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return SettingsView{}, domainError(http.StatusNotFound, "SETTINGS_NOT_FOUND", "Settings not found", nil)
	}
	if err != nil {
		return SettingsView{}, err
	}
	view := SettingsView{Settings: settings, LLMAPIKeySet: settings.LLMAPIKey != ""}
	view.LLMAPIKey = ""
	return view, nil
}

// StoreSettings replaces the user's settings. An empty llm_api_key keeps the
// stored key, so clients can save without echoing it back.
func (s *Service) StoreSettings(ctx context.Context, user auth.User, settings store.Settings) error {
	if len(settings.MCPConfig) > 0 && !json.Valid(settings.MCPConfig) {
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "mcp_config must be valid JSON", nil)
	}
	if settings.LLMAPIKey == "" {
		existing, err := s.store.LoadSettings(ctx, user.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		settings.LLMAPIKey = existing.LLMAPIKey
	}
	if settings.Email == "" {
		settings.Email = user.Email
	}
	return s.store.StoreSettings(ctx, user.ID, settings)
}

// Secrets

type CustomSecretInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CustomSecretInput struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (s *Service) loadSecrets(ctx context.Context, userID string) (store.UserSecrets, error) {
	secrets, err := s.store.LoadSecrets(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.NewUserSecrets(), nil
	}
	if err != nil {
		return store.UserSecrets{}, err
	}
	if secrets.ProviderTokens == nil {
		secrets.ProviderTokens = map[string]store.ProviderToken{}
	}
	if secrets.CustomSecrets == nil {
		secrets.CustomSecrets = map[string]store.CustomSecret{}
	}
	return secrets, nil
}

// ListCustomSecrets returns names and descriptions only, sorted by name.
func (s *Service) ListCustomSecrets(ctx context.Context, user auth.User) ([]CustomSecretInfo, error) {
	secrets, err := s.loadSecrets(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	items := make([]CustomSecretInfo, 0, len(secrets.CustomSecrets))
	for name, secret := range secrets.CustomSecrets {
		items = append(items, CustomSecretInfo{Name: name, Description: secret.Description})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Service) PutCustomSecret(ctx context.Context, user auth.User, input CustomSecretInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}
	secrets, err := s.loadSecrets(ctx, user.ID)
	if err != nil {
		return err
	}
	secrets.CustomSecrets[name] = store.CustomSecret{Secret: input.Value, Description: input.Description}
	return s.store.StoreSecrets(ctx, user.ID, secrets)
}

func (s *Service) DeleteCustomSecret(ctx context.Context, user auth.User, name string) error {
	secrets, err := s.loadSecrets(ctx, user.ID)
	if err != nil {
		return err
	}
	if _, ok := secrets.CustomSecrets[name]; !ok {
		return domainError(http.StatusNotFound, "SECRET_NOT_FOUND", fmt.Sprintf("Secret '%s' not found", name), nil)
	}
	delete(secrets.CustomSecrets, name)
	return s.store.StoreSecrets(ctx, user.ID, secrets)
}

// StoreProviderTokens validates every non-empty token with its provider and
// merges the result into the stored secrets. An empty token keeps what is
// stored for that provider.
func (s *Service) StoreProviderTokens(ctx context.Context, user auth.User, tokens map[string]store.ProviderToken) error {
	secrets, err := s.loadSecrets(ctx, user.ID)
	if err != nil {
		return err
	}
	for name, token := range tokens {
		if name != provider.GitHub {
			return domainError(http.StatusBadRequest, "UNSUPPORTED_PROVIDER", fmt.Sprintf("Unsupported provider '%s'", name), nil)
		}
		if strings.TrimSpace(token.Token) == "" {
			if existing, ok := secrets.ProviderTokens[name]; ok {
				existing.Host = firstNonEmpty(token.Host, existing.Host)
				secrets.ProviderTokens[name] = existing
			}
			continue
		}
		if _, ok := provider.ValidateProviderToken(ctx, s.github(token.Host), token.Token); !ok {
			return domainError(http.StatusBadRequest, "INVALID_PROVIDER_TOKEN", fmt.Sprintf("Invalid token for provider '%s'", name), nil)
		}
		secrets.ProviderTokens[name] = token
	}
	return s.store.StoreSecrets(ctx, user.ID, secrets)
}

// Conversations

type CreateConversationInput struct {
	Title              string `json:"title"`
	SelectedRepository string `json:"selected_repository"`
	SelectedBranch     string `json:"selected_branch"`
	GitProvider        string `json:"git_provider"`
	Trigger            string `json:"trigger"`
	LLMModel           string `json:"llm_model"`
}

func (s *Service) CreateConversation(ctx context.Context, user auth.User, input CreateConversationInput) (store.ConversationMetadata, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Conversation " + id[:5]
	}
	now := time.Now().UTC()
	meta := store.ConversationMetadata{
		ConversationID:     id,
		UserID:             user.ID,
		Title:              title,
		SelectedRepository: input.SelectedRepository,
		SelectedBranch:     input.SelectedBranch,
		GitProvider:        input.GitProvider,
		Trigger:            firstNonEmpty(input.Trigger, "gui"),
		LLMModel:           input.LLMModel,
		CreatedAt:          now,
		LastUpdatedAt:      now,
	}
	if err := s.store.SaveConversation(ctx, meta); err != nil {
		return store.ConversationMetadata{}, err
	}
	s.index(meta)
	return meta, nil
}

func (s *Service) GetConversation(ctx context.Context, user auth.User, id string) (store.ConversationMetadata, error) {
	meta, err := s.store.GetConversation(ctx, user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.ConversationMetadata{}, domainError(http.StatusNotFound, "CONVERSATION_NOT_FOUND", "Conversation not found", nil)
	}
	return meta, err
}

func (s *Service) ConversationExists(ctx context.Context, user auth.User, id string) (bool, error) {
	return s.store.ConversationExists(ctx, user.ID, id)
}

func (s *Service) DeleteConversation(ctx context.Context, user auth.User, id string) error {
	err := s.store.DeleteConversation(ctx, user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		return domainError(http.StatusNotFound, "CONVERSATION_NOT_FOUND", "Conversation not found", nil)
	}
	if err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteConversation(id)
	}
	return nil
}

func (s *Service) ListConversations(ctx context.Context, user auth.User, pageID string, limit int) (store.ConversationPage, error) {
	if limit <= 0 {
		limit = store.DefaultPageLimit
	}
	if limit > 100 {
		limit = 100
	}
	page, err := s.store.SearchConversations(ctx, user.ID, pageID, limit)
	if err != nil {
		return store.ConversationPage{}, err
	}
	if page.Conversations == nil {
		page.Conversations = []store.ConversationMetadata{}
	}
	return page, nil
}

func (s *Service) SearchConversations(ctx context.Context, user auth.User, text string, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "q is required", nil)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{UserID: user.ID, Text: text, Limit: limit, Offset: offset}), nil
}

func (s *Service) index(meta store.ConversationMetadata) {
	if s.search == nil {
		return
	}
	s.search.IndexConversation(search.ConversationRecord{
		ID:                 meta.ConversationID,
		UserID:             meta.UserID,
		Title:              meta.Title,
		SelectedRepository: meta.SelectedRepository,
		CreatedAt:          meta.CreatedAt.Unix(),
	})
}

// Completions

type CompletionInput struct {
	Prompt       string `json:"prompt"`
	Instructions string `json:"instructions"`
}

type CompletionResult struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Text  string `json:"text"`
}

// Complete sends prompt to the Responses API. The user's LLM settings take
// precedence over the server defaults, but a user base URL is only ever
// paired with the user's own key.
func (s *Service) Complete(ctx context.Context, user auth.User, input CompletionInput) (CompletionResult, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return CompletionResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "prompt is required", nil)
	}
	if s.llm == nil {
		return CompletionResult{}, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Completions are not configured", nil)
	}
	settings, err := s.store.LoadSettings(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return CompletionResult{}, err
	}
	cfg := llm.Config{
		BaseURL:         s.cfg.OpenAIBaseURL,
		APIKey:          firstNonEmpty(settings.LLMAPIKey, s.cfg.OpenAIAPIKey),
		Model:           firstNonEmpty(settings.LLMModel, s.cfg.OpenAIModel),
		ReasoningEffort: s.cfg.OpenAIReasoningEffort,
		Timeout:         s.cfg.OpenAITimeout,
	}
	// The server key only ever goes to the server's own endpoint.
	if !sameBaseURL(settings.LLMBaseURL, s.cfg.OpenAIBaseURL) {
		cfg.BaseURL = settings.LLMBaseURL
		cfg.APIKey = settings.LLMAPIKey
	}
	if cfg.APIKey == "" {
		return CompletionResult{}, domainError(http.StatusBadRequest, "LLM_NOT_CONFIGURED", "No LLM API key is configured", nil)
	}

	resp, err := s.llm.CreateResponse(ctx, cfg, input.Prompt, input.Instructions)
	if err != nil {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			return CompletionResult{}, domainError(http.StatusBadGateway, "LLM_ERROR", "Completion request failed",
				map[string]any{"upstream_status": statusErr.StatusCode})
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return CompletionResult{}, domainError(http.StatusGatewayTimeout, "LLM_TIMEOUT", "Completion request timed out", nil)
		}
		return CompletionResult{}, fmt.Errorf("create response: %w", err)
	}
	return CompletionResult{ID: resp.ID, Model: resp.Model, Text: resp.Text()}, nil
}

// sameBaseURL treats an empty user value as the server default.
func sameBaseURL(user, server string) bool {
	user = strings.TrimRight(strings.TrimSpace(user), "/")
	return user == "" || strings.EqualFold(user, strings.TrimRight(strings.TrimSpace(server), "/"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
