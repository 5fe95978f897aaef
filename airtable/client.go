package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"settlement-service/models"
)

const airtableBaseURL = "https://api.airtable.com/v0"

// unnotifiedFormula selects records whose notified flag is unchecked or absent.
const unnotifiedFormula = "NOT({notified})"

// Client talks to the Airtable REST API for one base. It is the request store
// behind the settlement loop: accepted requests always reappear in the filtered
// view until they are marked notified, which is the entire retry mechanism.
type Client struct {
	baseURL       string
	apiKey        string
	baseID        string
	requestsTable string
	gigsTable     string
	acceptedView  string
	httpClient    *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func NewClient(apiKey, baseID, requestsTable, gigsTable, acceptedView string, opts ...Option) *Client {
	c := &Client{
		baseURL:       airtableBaseURL,
		apiKey:        apiKey,
		baseID:        baseID,
		requestsTable: requestsTable,
		gigsTable:     gigsTable,
		acceptedView:  acceptedView,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---- Airtable API request/response structs ----

type airtableRecord struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

type airtableListResponse struct {
	Records []airtableRecord `json:"records"`
}

type airtableWriteRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

// ---- Request store operations ----

// ListUnnotified returns every record in the accepted view whose notified flag
// is false or absent.
func (c *Client) ListUnnotified(ctx context.Context) ([]models.SongRequest, error) {
	q := url.Values{}
	q.Set("view", c.acceptedView)
	q.Set("filterByFormula", unnotifiedFormula)

	var resp airtableListResponse
	path := fmt.Sprintf("/%s/%s?%s", c.baseID, c.requestsTable, q.Encode())
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("airtable ListUnnotified: %w", err)
	}

	requests := make([]models.SongRequest, 0, len(resp.Records))
	for _, r := range resp.Records {
		requests = append(requests, toSongRequest(r))
	}
	return requests, nil
}

// FindGig looks up a gig by its gig_id. Exactly one match is expected; the
// first match wins if the store somehow holds more. A missing gig returns
// (nil, nil) so the caller can treat it as a data problem rather than a
// transport failure.
func (c *Client) FindGig(ctx context.Context, gigID string) (*models.Gig, error) {
	q := url.Values{}
	q.Set("filterByFormula", fmt.Sprintf("{gig_id}=%s", quoteFormulaValue(gigID)))
	q.Set("maxRecords", "1")

	var resp airtableListResponse
	path := fmt.Sprintf("/%s/%s?%s", c.baseID, c.gigsTable, q.Encode())
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("airtable FindGig: %w", err)
	}

	if len(resp.Records) == 0 {
		return nil, nil
	}

	r := resp.Records[0]
	return &models.Gig{
		RecordID:        r.ID,
		GigID:           fieldString(r.Fields, models.FieldGigID),
		StripeConnectID: fieldString(r.Fields, models.FieldStripeConnectID),
	}, nil
}

// UpdateFields applies a partial update to one request record. Unspecified
// fields are left untouched (Airtable PATCH semantics).
func (c *Client) UpdateFields(ctx context.Context, recordID string, fields map[string]interface{}) error {
	path := fmt.Sprintf("/%s/%s/%s", c.baseID, c.requestsTable, recordID)
	if err := c.doRequest(ctx, http.MethodPatch, path, airtableWriteRequest{Fields: fields}, nil); err != nil {
		return fmt.Errorf("airtable UpdateFields: %w", err)
	}
	return nil
}

// MarkNotified commits the terminal state for a settled request.
func (c *Client) MarkNotified(ctx context.Context, recordID string, at time.Time) error {
	return c.UpdateFields(ctx, recordID, map[string]interface{}{
		models.FieldNotified:   true,
		models.FieldNotifiedAt: at.UTC().Format(time.RFC3339),
	})
}

// CreateRequest inserts a new song request record and returns its record id.
func (c *Client) CreateRequest(ctx context.Context, fields map[string]interface{}) (string, error) {
	var resp airtableRecord
	path := fmt.Sprintf("/%s/%s", c.baseID, c.requestsTable)
	if err := c.doRequest(ctx, http.MethodPost, path, airtableWriteRequest{Fields: fields}, &resp); err != nil {
		return "", fmt.Errorf("airtable CreateRequest: %w", err)
	}
	return resp.ID, nil
}

// CreateGig provisions a gig record and returns its record id.
func (c *Client) CreateGig(ctx context.Context, gigID, stripeConnectID string) (string, error) {
	var resp airtableRecord
	path := fmt.Sprintf("/%s/%s", c.baseID, c.gigsTable)
	body := airtableWriteRequest{Fields: map[string]interface{}{
		models.FieldGigID:           gigID,
		models.FieldStripeConnectID: stripeConnectID,
	}}
	if err := c.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", fmt.Errorf("airtable CreateGig: %w", err)
	}
	return resp.ID, nil
}

// FindRequestByRequestID locates a song request record by its caller-assigned id.
func (c *Client) FindRequestByRequestID(ctx context.Context, requestID string) (*models.SongRequest, error) {
	q := url.Values{}
	q.Set("filterByFormula", fmt.Sprintf("{request_id}=%s", quoteFormulaValue(requestID)))
	q.Set("maxRecords", "1")

	var resp airtableListResponse
	path := fmt.Sprintf("/%s/%s?%s", c.baseID, c.requestsTable, q.Encode())
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("airtable FindRequestByRequestID: %w", err)
	}

	if len(resp.Records) == 0 {
		return nil, nil
	}
	req := toSongRequest(resp.Records[0])
	return &req, nil
}

// ---- HTTP helper ----

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("airtable API error (status %d): %s", resp.StatusCode, string(respBytes))
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// ---- Conversion helpers ----

func toSongRequest(r airtableRecord) models.SongRequest {
	return models.SongRequest{
		RecordID:        r.ID,
		RequestID:       fieldString(r.Fields, models.FieldRequestID),
		GigID:           fieldString(r.Fields, models.FieldGigID),
		PhoneNumber:     fieldString(r.Fields, models.FieldPhoneNumber),
		SongName:        fieldString(r.Fields, models.FieldSongName),
		CustomerID:      fieldString(r.Fields, models.FieldCustomerID),
		PaymentMethodID: fieldString(r.Fields, models.FieldPaymentMethodID),
		BidAmount:       fieldString(r.Fields, models.FieldBidAmount),
		Notified:        fieldBool(r.Fields, models.FieldNotified),
	}
}

// fieldString reads a field that Airtable may return as either a string or a
// number (currency columns come back numeric).
func fieldString(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func fieldBool(fields map[string]interface{}, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

// quoteFormulaValue wraps a value as an Airtable formula string literal,
// escaping backslashes and single quotes so ids can never break out of the
// quoted literal and rewrite the filter.
func quoteFormulaValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
