package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ConversationID     string `json:"conversation_id"`
	Title              string `json:"title"`
	Snippet            string `json:"snippet"`
	SelectedRepository string `json:"selected_repository,omitempty"`
}

// Query describes a search request. UserID always scopes the search.
type Query struct {
	UserID string
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// ConversationRecord is the data we index for a conversation.
type ConversationRecord struct {
	ID                 string `json:"id"`
	UserID             string `json:"userId"`
	Title              string `json:"title"`
	SelectedRepository string `json:"selectedRepository"`
	CreatedAt          int64  `json:"createdAt"`
}

const defaultLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}
