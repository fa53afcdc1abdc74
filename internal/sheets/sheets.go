package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrUnavailable is returned when the client has no credentials. Callers
// surface it as "export not configured" rather than a server fault.
var ErrUnavailable = errors.New("sheets client not configured")

const defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// Client talks to the Google Sheets v4 REST API with a bearer token. It is
// injected into the handlers that need it; an unconfigured client is a
// valid state and reports itself via Configured.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBaseURL(u string) Option {
	return func(cl *Client) {
		cl.baseURL = u
	}
}

func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if an access token is set.
func (c *Client) Configured() bool {
	return c.accessToken != ""
}

// ExportResult describes where exported rows landed.
type ExportResult struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	SheetURL      string `json:"sheet_url"`
	RowsWritten   int    `json:"rows_written"`
}

// Export writes a header row plus data rows to the named sheet, creating a
// new spreadsheet when spreadsheetID is empty. Existing sheet contents are
// cleared first so the export is a full replacement.
func (c *Client) Export(ctx context.Context, spreadsheetID, sheetName, title string, header []string, rows [][]string) (*ExportResult, error) {
	if !c.Configured() {
		return nil, ErrUnavailable
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	if spreadsheetID == "" {
		id, err := c.createSpreadsheet(ctx, title)
		if err != nil {
			return nil, fmt.Errorf("create spreadsheet: %w", err)
		}
		spreadsheetID = id
	} else {
		// Replacing an existing sheet: drop whatever is there.
		clearURL := fmt.Sprintf("%s/%s/values/%s:clear",
			c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(sheetName+"!A:Z"))
		if err := c.doJSON(ctx, http.MethodPost, clearURL, struct{}{}, nil); err != nil {
			return nil, fmt.Errorf("clear sheet: %w", err)
		}
	}

	values := make([][]string, 0, len(rows)+1)
	values = append(values, header)
	values = append(values, rows...)

	updateURL := fmt.Sprintf("%s/%s/values/%s?valueInputOption=RAW",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(sheetName+"!A1"))
	body := map[string]any{"values": values}
	if err := c.doJSON(ctx, http.MethodPut, updateURL, body, nil); err != nil {
		return nil, fmt.Errorf("write values: %w", err)
	}

	return &ExportResult{
		SpreadsheetID: spreadsheetID,
		SheetURL:      "https://docs.google.com/spreadsheets/d/" + spreadsheetID,
		RowsWritten:   len(rows),
	}, nil
}

func (c *Client) createSpreadsheet(ctx context.Context, title string) (string, error) {
	body := map[string]any{
		"properties": map[string]any{"title": title},
	}
	var created struct {
		SpreadsheetID string `json:"spreadsheetId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, body, &created); err != nil {
		return "", err
	}
	if created.SpreadsheetID == "" {
		return "", errors.New("no spreadsheet id in response")
	}
	return created.SpreadsheetID, nil
}

// doJSON performs one API call, retrying transient failures (network
// errors, 429, 5xx) with fibonacci backoff. Client errors fail fast.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("sheets API: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("sheets API: status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("sheets API: status %d", resp.StatusCode)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}
