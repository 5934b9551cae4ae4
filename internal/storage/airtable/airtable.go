package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"booklist/internal/models"
	"booklist/internal/storage"
)

// DefaultAPIURL is the public REST endpoint
const DefaultAPIURL = "https://api.airtable.com/v0"

// ErrEmptyResponse is returned when a write succeeds but echoes no record
var ErrEmptyResponse = errors.New("airtable: response contains no records")

// StatusError is a non-success HTTP status from the store
type StatusError struct {
	Code int
	Text string
	// Detail is the store's own error message, when it sent one
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Text)
}

// Is lets callers match a 404 with storage.ErrNotFound
func (e *StatusError) Is(target error) bool {
	return target == storage.ErrNotFound && e.Code == http.StatusNotFound
}

// Client talks to one table of a base
type Client struct {
	tableURL string
	token    string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a client for apiURL/baseID/table
func NewClient(apiURL, baseID, table, token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid airtable API URL: %w", err)
	}
	if baseID == "" || table == "" {
		return nil, fmt.Errorf("airtable base id and table name are required")
	}

	return &Client{
		tableURL: base.JoinPath(baseID, table).String(),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type listResponse struct {
	Records []models.Record `json:"records"`
	Offset  string          `json:"offset,omitempty"`
}

type writeRequest struct {
	Records []models.Record `json:"records"`
}

// patchFields is the update payload. Rating is always sent: null clears the
// cell when the book is unrated, an omitted key would leave the old value.
type patchFields struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	About       string `json:"about"`
	Like        string `json:"like"`
	IsCompleted bool   `json:"isCompleted"`
	Rating      *int   `json:"rating"`
}

type patchRecord struct {
	ID     string      `json:"id"`
	Fields patchFields `json:"fields"`
}

type patchRequest struct {
	Records []patchRecord `json:"records"`
}

func toPatch(id string, f models.Fields) patchRequest {
	fields := patchFields{
		Title:       f.Title,
		Author:      f.Author,
		About:       f.About,
		Like:        f.Like,
		IsCompleted: f.IsCompleted,
	}
	if f.Rating > 0 {
		rating := f.Rating
		fields.Rating = &rating
	}
	return patchRequest{Records: []patchRecord{{ID: id, Fields: fields}}}
}

type writeResponse struct {
	Records []models.Record `json:"records"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Initialize is a no-op, the table is provisioned outside this service
func (c *Client) Initialize(ctx context.Context) error {
	return nil
}

// List fetches every page of records matching q
func (c *Client) List(ctx context.Context, q storage.ListQuery) ([]models.Record, error) {
	params := ListParams(q)

	records := []models.Record{}
	for {
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL+"?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			break
		}
		params.Set("offset", page.Offset)
	}

	c.logger.Debug("Listed records",
		zap.Int("count", len(records)),
		zap.String("sort_field", q.SortField),
		zap.String("sort_direction", q.SortDirection),
		zap.String("search", q.Search),
	)
	return records, nil
}

// Create writes a single record
func (c *Client) Create(ctx context.Context, fields models.Fields) (models.Record, error) {
	body := writeRequest{Records: []models.Record{{Fields: fields}}}

	var resp writeResponse
	if err := c.do(ctx, http.MethodPost, c.tableURL, body, &resp); err != nil {
		return models.Record{}, err
	}
	if len(resp.Records) == 0 {
		return models.Record{}, ErrEmptyResponse
	}
	return resp.Records[0], nil
}

// Update patches the editable fields of record id
func (c *Client) Update(ctx context.Context, id string, fields models.Fields) (models.Record, error) {
	var resp writeResponse
	if err := c.do(ctx, http.MethodPatch, c.tableURL, toPatch(id, fields), &resp); err != nil {
		return models.Record{}, err
	}
	if len(resp.Records) == 0 {
		return models.Record{}, ErrEmptyResponse
	}
	return resp.Records[0], nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Airtable request failed", zap.String("method", method), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("Airtable request",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode, Text: http.StatusText(resp.StatusCode)}
		var apiErr errorResponse
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(data, &apiErr) == nil {
			statusErr.Detail = apiErr.Error.Message
		}
		c.logger.Warn("Airtable returned an error status",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", statusErr.Detail),
		)
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListParams builds the query string of a list request: a single-key sort and,
// when q.Search is set, a SEARCH formula on the title
func ListParams(q storage.ListQuery) url.Values {
	params := url.Values{}
	params.Set("sort[0][field]", q.SortField)
	params.Set("sort[0][direction]", q.SortDirection)
	if q.Search != "" {
		params.Set("filterByFormula", SearchFormula(q.Search))
	}
	return params
}

var formulaEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// SearchFormula returns SEARCH("query",{title}) with query escaped as a
// formula string literal
func SearchFormula(query string) string {
	return `SEARCH("` + formulaEscaper.Replace(query) + `",{title})`
}
