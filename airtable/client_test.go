package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"settlement-service/models"

	"github.com/stretchr/testify/assert"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("test-key", "appBase1", "song_requests_tbl", "gigs_tbl", "Accepted", WithBaseURL(srv.URL))
	return c, srv
}

func TestListUnnotified(t *testing.T) {
	var gotQuery map[string][]string
	var gotAuth string

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/appBase1/song_requests_tbl", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{
					"id": "rec001",
					"fields": map[string]interface{}{
						"request_id":        "req-1",
						"gig_id":            "G1",
						"phone_number":      "+15551234567",
						"song_name":         "Dancing Queen",
						"customer_id":       "cus_1",
						"payment_method_id": "pm_1",
						"bid_amount":        2.5, // currency columns come back numeric
					},
				},
			},
		})
	})
	defer srv.Close()

	reqs, err := c.ListUnnotified(context.Background())
	assert.NoError(t, err)
	assert.Len(t, reqs, 1)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, []string{"Accepted"}, gotQuery["view"])
	assert.Equal(t, []string{"NOT({notified})"}, gotQuery["filterByFormula"])

	r := reqs[0]
	assert.Equal(t, "rec001", r.RecordID)
	assert.Equal(t, "2.5", r.BidAmount)
	assert.Equal(t, "Dancing Queen", r.SongName)
	assert.False(t, r.Notified)
}

func TestListUnnotified_ServerError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"INTERNAL"}`, http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.ListUnnotified(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFindGig(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appBase1/gigs_tbl", r.URL.Path)
		assert.Equal(t, "{gig_id}='G1'", r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "1", r.URL.Query().Get("maxRecords"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{
					"id": "recG1",
					"fields": map[string]interface{}{
						"gig_id":            "G1",
						"stripe_connect_id": "acct_123",
					},
				},
			},
		})
	})
	defer srv.Close()

	gig, err := c.FindGig(context.Background(), "G1")
	assert.NoError(t, err)
	assert.NotNil(t, gig)
	assert.Equal(t, "acct_123", gig.StripeConnectID)
}

func TestFindGig_NoMatch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"records": []interface{}{}})
	})
	defer srv.Close()

	gig, err := c.FindGig(context.Background(), "G2")
	assert.NoError(t, err)
	assert.Nil(t, gig)
}

func TestFindGig_QuotesFormulaValue(t *testing.T) {
	var gotFormula string

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		json.NewEncoder(w).Encode(map[string]interface{}{"records": []interface{}{}})
	})
	defer srv.Close()

	// An id carrying a single quote must stay inside the string literal
	// instead of terminating it and rewriting the filter.
	_, err := c.FindGig(context.Background(), `x'!=''&'`)
	assert.NoError(t, err)
	assert.Equal(t, `{gig_id}='x\'!=\'\'&\''`, gotFormula)

	_, err = c.FindRequestByRequestID(context.Background(), `a\'b`)
	assert.NoError(t, err)
	assert.Equal(t, `{request_id}='a\\\'b'`, gotFormula)
}

func TestQuoteFormulaValue(t *testing.T) {
	assert.Equal(t, `'G1'`, quoteFormulaValue("G1"))
	assert.Equal(t, `'it\'s'`, quoteFormulaValue("it's"))
	assert.Equal(t, `'a\\b'`, quoteFormulaValue(`a\b`))
}

func TestMarkNotified(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]map[string]interface{}

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "rec001"})
	})
	defer srv.Close()

	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	err := c.MarkNotified(context.Background(), "rec001", at)
	assert.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod, "partial update must PATCH, not PUT")
	assert.Equal(t, "/appBase1/song_requests_tbl/rec001", gotPath)

	fields := gotBody["fields"]
	assert.Equal(t, true, fields["notified"])
	assert.Equal(t, "2025-06-01T12:30:00Z", fields["notified_at"])
	assert.Len(t, fields, 2, "must not clobber unspecified fields")
}

func TestCreateRequest(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appBase1/song_requests_tbl", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "recNew"})
	})
	defer srv.Close()

	id, err := c.CreateRequest(context.Background(), map[string]interface{}{
		models.FieldRequestID: "req-9",
		models.FieldSongName:  "Levels",
	})
	assert.NoError(t, err)
	assert.Equal(t, "recNew", id)
}

func TestFindRequestByRequestID(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "{request_id}='req-1'", r.URL.Query().Get("filterByFormula"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{
					"id": "rec001",
					"fields": map[string]interface{}{
						"request_id": "req-1",
						"notified":   true,
					},
				},
			},
		})
	})
	defer srv.Close()

	req, err := c.FindRequestByRequestID(context.Background(), "req-1")
	assert.NoError(t, err)
	assert.NotNil(t, req)
	assert.Equal(t, "rec001", req.RecordID)
	assert.True(t, req.Notified)
}
