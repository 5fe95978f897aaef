package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestTwilio(t *testing.T, handler http.HandlerFunc) (*TwilioSender, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	tw, err := NewTwilioSender("AC123", "token", "+15550001111")
	assert.NoError(t, err)
	tw.apiBase = srv.URL
	return tw, srv
}

func TestNewTwilioSender_MissingCreds(t *testing.T) {
	_, err := NewTwilioSender("", "token", "+15550001111")
	assert.Error(t, err)
	_, err = NewTwilioSender("AC123", "", "+15550001111")
	assert.Error(t, err)
	_, err = NewTwilioSender("AC123", "token", "")
	assert.Error(t, err)
}

func TestSendSMS(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser string

	tw, srv := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		r.ParseForm()
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	})
	defer srv.Close()

	res, err := tw.SendSMS(context.Background(), "+15551234567", "see you on the dance floor")
	assert.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "+15550001111", gotFrom)
	assert.Equal(t, "see you on the dance floor", gotBody)
}

func TestSendSMS_APIError(t *testing.T) {
	tw, srv := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": 21211, "message": "Invalid 'To' Phone Number"}`, http.StatusBadRequest)
	})
	defer srv.Close()

	_, err := tw.SendSMS(context.Background(), "not-a-number", "hi")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
}
