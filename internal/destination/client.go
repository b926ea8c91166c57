// Package destination wraps the destination application's write API.
// Responses are classified into terminal and retryable failures at the
// point of origin so the retry policy never inspects error strings.
package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/httpclient"
	"github.com/tastebase/recipe-migrate/internal/logging"
	"github.com/tastebase/recipe-migrate/internal/model"
)

const (
	usersEndpoint   = "/migration/users"
	recipesEndpoint = "/migration/recipes"

	// Response bodies are error diagnostics, not payloads; cap what we keep.
	maxErrorBodyBytes = 4096
)

// APIError is a non-2xx response from the destination write API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("destination API returned status %d: %s", e.StatusCode, e.Body)
}

// ErrorCategory classifies the response: server errors are retryable,
// client errors are terminal validation failures.
func (e *APIError) ErrorCategory() errors.ErrorCategory {
	if e.StatusCode >= http.StatusInternalServerError {
		return errors.CategoryServer
	}
	return errors.CategoryValidation
}

// UserResponse is the destination's reply to a user upsert. Existed is set
// when the email was already registered, which the user importer counts as
// success but reports separately.
type UserResponse struct {
	ID      string `json:"id"`
	Existed bool   `json:"existed"`
}

// RecipeResponse is the destination's reply to a recipe upsert.
type RecipeResponse struct {
	ID string `json:"id"`
}

// Config holds the settings for a destination API client.
type Config struct {
	BaseURL   string
	AuthToken string
}

// Client is a thin authenticated client for the destination write API.
type Client struct {
	http    *httpclient.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewClient creates a destination API client on top of the shared HTTP
// client. Passing a nil httpClient builds one with default settings.
func NewClient(cfg Config, httpClient *httpclient.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(nil)
	}
	return &Client{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		token:   cfg.AuthToken,
		logger:  logging.ForService("destination"),
	}
}

// CreateUser submits a user to the destination, returning the effective id
// and whether the email already existed.
func (c *Client) CreateUser(ctx context.Context, user *model.TransformedUser) (*UserResponse, error) {
	var out UserResponse
	if err := c.post(ctx, usersEndpoint, user, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRecipe submits a recipe to the destination, returning the effective id.
func (c *Client) CreateRecipe(ctx context.Context, recipe *model.TransformedRecipe) (*RecipeResponse, error) {
	var out RecipeResponse
	if err := c.post(ctx, recipesEndpoint, recipe, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// post performs an authenticated JSON POST and decodes a 2xx response into
// out. Non-2xx responses become APIError; transport failures are wrapped as
// network errors so the retry classifier treats them as retryable.
func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	url := c.baseURL + endpoint

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.New(fmt.Errorf("marshaling payload for %s: %w", endpoint, err)).
			Component("destination").
			Category(errors.CategoryValidation).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.New(fmt.Errorf("creating request for %s: %w", endpoint, err)).
			Component("destination").
			Category(errors.CategoryUnknown).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return errors.New(fmt.Errorf("posting to %s: %w", endpoint, err)).
			Component("destination").
			Category(category).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		c.logger.Debug("destination rejected payload",
			"endpoint", endpoint,
			"status", resp.StatusCode)
		return errors.New(apiErr).
			Component("destination").
			Category(apiErr.ErrorCategory()).
			Build()
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(fmt.Errorf("decoding response from %s: %w", endpoint, err)).
			Component("destination").
			Category(errors.CategoryServer).
			Build()
	}
	return nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.http.Close()
}
