package emailsvc

import (
	"errors"
	"net/http"
	"net/mail"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/testutil"
)

// scriptedAPI answers the n-th request with the n-th reply and records every request.
type scriptedAPI struct {
	replies []reply
	reqs    []rest.Request
}

type reply struct {
	status int
	err    error
}

func (a *scriptedAPI) send(req rest.Request) (*rest.Response, error) {
	r := a.replies[len(a.reqs)]
	a.reqs = append(a.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &rest.Response{StatusCode: r.status, Body: http.StatusText(r.status)}, nil
}

func newSendgridTest(t *testing.T, replies ...reply) (sendgridService, *scriptedAPI, *testutil.Logger) {
	t.Helper()
	backoff := retryBackoff
	retryBackoff = 0
	t.Cleanup(func() { retryBackoff = backoff })

	logger := new(testutil.Logger)
	api := &scriptedAPI{replies: replies}
	svc := *NewSendgridService(core.NewTestConfig(), logger)
	svc.api = api.send
	return svc, api, logger
}

func warningMessage() core.EmailMessage {
	msg := core.EmailMessage{
		To:       []mail.Address{{Name: "Fay Faculty", Address: "fay@campus.edu"}},
		Subject:  "You have a new notification",
		BodyStr:  "A student doubt has been escalated to you.",
		AppName:  "CampusMentor",
		Category: "warning",
	}
	_ = msg.Render()
	return msg
}

func TestSendgridService_prepare(t *testing.T) {
	svc, _, _ := newSendgridTest(t)

	m := svc.prepare(warningMessage())
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[CampusMentor] Action needed: You have a new notification", m.Personalizations[0].Subject)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "fay@campus.edu", m.Personalizations[0].To[0].Address)
	assert.Equal(t, []string{"warning"}, m.Categories)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)

	plain := core.EmailMessage{To: warningMessage().To, Subject: "Welcome", BodyStr: "Hello."}
	_ = plain.Render()
	m = svc.prepare(plain)
	assert.Equal(t, "[CampusMentor] Welcome", m.Personalizations[0].Subject)
	assert.Empty(t, m.Categories)
}

func TestSendgridService_send(t *testing.T) {
	tests := []struct {
		name         string
		replies      []reply
		wantAttempts int
		wantErrors   int
	}{
		{name: "accepted", replies: []reply{{status: http.StatusAccepted}}, wantAttempts: 1},
		{
			name:         "server error then accepted",
			replies:      []reply{{status: http.StatusServiceUnavailable}, {status: http.StatusAccepted}},
			wantAttempts: 2,
		},
		{
			name:         "transport error then accepted",
			replies:      []reply{{err: errors.New("connection reset")}, {status: http.StatusAccepted}},
			wantAttempts: 2,
		},
		{name: "rejected", replies: []reply{{status: http.StatusBadRequest}}, wantAttempts: 1, wantErrors: 1},
		{
			name: "server keeps failing",
			replies: []reply{
				{status: http.StatusInternalServerError},
				{status: http.StatusBadGateway},
				{err: errors.New("connection reset")},
			},
			wantAttempts: 3,
			wantErrors:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api, logger := newSendgridTest(t, tt.replies...)

			svc.send(warningMessage())
			require.Len(t, api.reqs, tt.wantAttempts)
			for _, req := range api.reqs {
				assert.Equal(t, http.MethodPost, string(req.Method))
				assert.Contains(t, string(req.Body), `"categories":["warning"]`)
			}
			assert.Len(t, logger.Messages("ERROR"), tt.wantErrors)
		})
	}
}
