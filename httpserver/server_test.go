package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/snipbox/snipbox/admission"
	"github.com/snipbox/snipbox/config"
	"github.com/snipbox/snipbox/orchestrator"
	"github.com/snipbox/snipbox/sandbox"
)

type stubSubmitter struct {
	result  orchestrator.Result
	lastReq sandbox.Request
	calls   int
}

func (s *stubSubmitter) Submit(_ context.Context, req sandbox.Request) orchestrator.Result {
	s.lastReq = req
	s.calls++
	return s.result
}

func newTestServer(t *testing.T, sub Submitter) *Server {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{Addr: ":0"}}
	return New(cfg, zaptest.NewLogger(t), sub)
}

func postRun(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeRun(t *testing.T, rec *httptest.ResponseRecorder) runResponse {
	t.Helper()
	var res runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &stubSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunCompleted(t *testing.T) {
	sub := &stubSubmitter{result: orchestrator.Result{Result: sandbox.Result{
		Status: sandbox.StatusCompleted,
		Output: "hi\n",
	}}}
	s := newTestServer(t, sub)

	rec := postRun(t, s, `{"user_id":"u1","message":"`+"```python\\nprint('hi')\\n```"+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeRun(t, rec)
	assert.Equal(t, "completed", res.Status)
	assert.NotEmpty(t, res.RequestID)
	assert.Contains(t, res.Reply, "hi")

	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, "u1", sub.lastReq.RequestorID)
	assert.Equal(t, "python", sub.lastReq.Language)
	assert.Equal(t, "print('hi')\n", sub.lastReq.Code)
	assert.False(t, sub.lastReq.SubmittedAt.IsZero())
}

func TestRunMissingFields(t *testing.T) {
	sub := &stubSubmitter{}
	s := newTestServer(t, sub)

	rec := postRun(t, s, `{"message":"hi"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, sub.calls)
}

func TestRunUnparsableMessage(t *testing.T) {
	sub := &stubSubmitter{}
	s := newTestServer(t, sub)

	rec := postRun(t, s, `{"user_id":"u1","message":"no code here"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeRun(t, rec)
	assert.Equal(t, "invalid_request", res.Status)
	assert.Contains(t, res.Reply, "code blocks")
	assert.Zero(t, sub.calls)
}

func TestRunRejections(t *testing.T) {
	tests := []struct {
		name       string
		reason     admission.RejectReason
		wantCode   int
		wantStatus string
	}{
		{"too large", admission.ReasonTooLarge, http.StatusRequestEntityTooLarge, "rejected_too_large"},
		{"rate limited", admission.ReasonRateLimited, http.StatusTooManyRequests, "rejected_rate_limited"},
		{"overloaded", admission.ReasonOverloaded, http.StatusServiceUnavailable, "rejected_overloaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &stubSubmitter{result: orchestrator.Result{
				Rejection: &admission.Rejection{Reason: tt.reason},
			}}
			s := newTestServer(t, sub)

			rec := postRun(t, s, `{"user_id":"u1","message":"`+"```python\\npass\\n```"+`"}`)

			assert.Equal(t, tt.wantCode, rec.Code)
			res := decodeRun(t, rec)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.NotEmpty(t, res.Reply)
		})
	}
}

func TestRunTimeoutOptionFlowsThrough(t *testing.T) {
	sub := &stubSubmitter{result: orchestrator.Result{Result: sandbox.Result{
		Status: sandbox.StatusTimedOut,
	}}}
	s := newTestServer(t, sub)

	rec := postRun(t, s, `{"user_id":"u1","message":"[[timeout=5]]\n`+"```python\\npass\\n```"+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5s", sub.lastReq.TimeoutCap.String())
	res := decodeRun(t, rec)
	assert.Equal(t, "timed_out", res.Status)
}
