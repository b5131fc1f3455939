// Package client provides a Go client for the Questhub API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Questhub API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Questhub client. Verification calls wait on chain RPC,
// so the default timeout is generous.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Quest is a catalogue entry. Only the fields clients usually need are decoded.
type Quest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	XP          int64  `json:"xp"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	Status      string `json:"status"`
	Hidden      bool   `json:"hidden,omitempty"`
	Steps       []Step `json:"steps"`
}

// Step is one action within a quest
type Step struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Verification *VerificationConfig `json:"verification,omitempty"`
}

// VerificationConfig describes the on-chain fact a quest checks for
type VerificationConfig struct {
	Type               string          `json:"type"`
	ChainID            int64           `json:"chainId,omitempty"`
	ContractAddress    string          `json:"contractAddress,omitempty"`
	Contracts          []string        `json:"contracts,omitempty"`
	EventABI           json.RawMessage `json:"eventAbi,omitempty"`
	EventName          string          `json:"eventName,omitempty"`
	EventSignatureHash string          `json:"eventSignatureHash,omitempty"`
	ArgName            string          `json:"argName,omitempty"`
	MinAmount          string          `json:"minAmount,omitempty"`
	TokenDecimals      *int32          `json:"tokenDecimals,omitempty"`
}

// Milestone is an XP threshold
type Milestone struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	XPRequired int64  `json:"xpRequired"`
	Rarity     string `json:"rarity"`
}

// MilestoneProgress is a user's position on the milestone ladder
type MilestoneProgress struct {
	Achieved []Milestone `json:"achieved"`
	Next     *Milestone  `json:"next,omitempty"`
	Percent  float64     `json:"progress"`
}

// Profile is a user's progress
type Profile struct {
	Address         string            `json:"address"`
	CompletedQuests []string          `json:"completedQuests"`
	StepCompletions map[string][]int  `json:"stepCompletions"`
	XP              int64             `json:"xp"`
	Milestones      MilestoneProgress `json:"milestones"`
}

// QuestResult is the outcome of verifying a quest
type QuestResult struct {
	Success bool   `json:"success"`
	XP      int64  `json:"xp,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// StepResult is the outcome of verifying a step
type StepResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	Tier             string `json:"tier,omitempty"`
	XPAwarded        int64  `json:"xpAwarded"`
	AlreadyCompleted bool   `json:"alreadyCompleted,omitempty"`
	QuestCompleted   bool   `json:"questCompleted,omitempty"`
}

// SyncResult reports a sync run
type SyncResult struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message,omitempty"`
	SyncedCount      int      `json:"syncedCount"`
	NewCompletions   []string `json:"newCompletions"`
	TotalCompletions []string `json:"totalCompletions"`
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Address     string `json:"address"`
	XP          int64  `json:"xp"`
	Completions int    `json:"completions"`
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ListQuests lists visible quests, optionally restricted to a category
func (c *Client) ListQuests(ctx context.Context, category string) ([]Quest, error) {
	path := "/api/v1/quests"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var resp struct {
		Data []Quest `json:"data"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetQuest gets a quest by ID
func (c *Client) GetQuest(ctx context.Context, id string) (*Quest, error) {
	var resp Quest
	if err := c.get(ctx, "/api/v1/quests/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Milestones lists the milestone catalogue
func (c *Client) Milestones(ctx context.Context) ([]Milestone, error) {
	var resp struct {
		Data []Milestone `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/milestones", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// VerifyQuest verifies a quest for address. A failed verification is not an
// error: it comes back as a result with Success false.
func (c *Client) VerifyQuest(ctx context.Context, questID, address string) (*QuestResult, error) {
	var resp QuestResult
	path := fmt.Sprintf("/api/v1/quests/%s/verify", url.PathEscape(questID))
	if err := c.post(ctx, path, map[string]string{"address": address}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyStep verifies one step of a quest for address
func (c *Client) VerifyStep(ctx context.Context, questID string, step int, address string) (*StepResult, error) {
	var resp StepResult
	path := fmt.Sprintf("/api/v1/quests/%s/steps/verify", url.PathEscape(questID))
	body := map[string]any{"address": address, "stepIndex": step}
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StepStatus returns the completed step indices of a quest
func (c *Client) StepStatus(ctx context.Context, questID, address string) ([]int, error) {
	var resp struct {
		CompletedIndices []int `json:"completedIndices"`
	}
	path := fmt.Sprintf("/api/v1/quests/%s/steps?address=%s", url.PathEscape(questID), url.QueryEscape(address))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.CompletedIndices, nil
}

// Profile gets a user's progress
func (c *Client) Profile(ctx context.Context, address string) (*Profile, error) {
	var resp Profile
	if err := c.get(ctx, "/api/v1/users/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync re-checks every on-chain quest for address
func (c *Client) Sync(ctx context.Context, address string) (*SyncResult, error) {
	var resp SyncResult
	path := fmt.Sprintf("/api/v1/users/%s/sync", url.PathEscape(address))
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leaderboard returns the top addresses by XP. A zero limit uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	path := "/api/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Data []LeaderboardEntry `json:"data"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Verify runs an ad-hoc verification config without recording anything
func (c *Client) Verify(ctx context.Context, cfg VerificationConfig, address string) (*QuestResult, error) {
	var resp QuestResult
	body := map[string]any{"config": cfg, "address": address}
	if err := c.post(ctx, "/api/v1/verify", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

// do sends req and decodes the body into result. Error envelopes become
// *APIError. Any other 4xx body is a verification result and is decoded.
func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		if apiErr := decodeAPIError(data); apiErr != nil {
			apiErr.Status = resp.StatusCode
			return apiErr
		}
		if resp.StatusCode >= 500 || result == nil || !json.Valid(data) {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
	}

	if result != nil {
		return json.Unmarshal(data, result)
	}

	return nil
}

// decodeAPIError returns the error envelope in data, or nil when data is
// not one. Verification results also carry an "error" key, but as a string.
func decodeAPIError(data []byte) *APIError {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil || len(env.Error) == 0 || env.Error[0] != '{' {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(env.Error, &apiErr); err != nil || apiErr.Code == "" {
		return nil
	}
	return &apiErr
}
