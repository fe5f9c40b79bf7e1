package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path string
	body map[string]json.RawMessage
}

type recorder struct {
	mu    sync.Mutex
	calls []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.calls...)
}

func newTestServer(t *testing.T, status int, reply string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.calls = append(rec.calls, captured{path: r.URL.Path, body: body})
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestPromptReplaceOmitsUnsetFields(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL+"/", time.Second)

	steps := 28
	resp, err := c.PromptReplace(context.Background(), PromptReplaceDetail{
		PositivePrompt: "a cozy cabin in the woods",
		Resolution:     &Resolution{Width: 1152, Height: 896},
		Sampler:        &Sampler{Steps: &steps, SamplerName: "euler"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	require.Len(t, calls.all(), 1)
	call := calls.all()[0]
	assert.Equal(t, "/rebase/forward", call.path)
	assert.JSONEq(t, `"prompt_replace"`, string(call.body["event"]))
	assert.JSONEq(t, `{
		"positive_prompt": "a cozy cabin in the woods",
		"resolution": {"width": 1152, "height": 896},
		"sampler": {"steps": 28, "sampler_name": "euler"}
	}`, string(call.body["data"]))
}

func TestGenerateValidatesCount(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL, time.Second)

	for _, n := range []int{0, 9, -1} {
		_, err := c.Generate(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidCount)
	}
	assert.Empty(t, calls.all())

	_, err := c.Generate(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, calls.all(), 1)
	assert.JSONEq(t, `{"count":3}`, string(calls.all()[0].body["data"]))
}

func TestResetPostsToResetRoute(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"success":true}`)

	_, err := New(srv.URL, time.Second).Reset(context.Background())
	require.NoError(t, err)
	require.Len(t, calls.all(), 1)
	assert.Equal(t, "/rebase/reset", calls.all()[0].path)
}

func TestErrorResponses(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest, `{"error":"Event field is required"}`)
	_, err := New(srv.URL, time.Second).Forward(context.Background(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Event field is required")

	srv, _ = newTestServer(t, http.StatusOK, `<html>`)
	_, err = New(srv.URL, time.Second).Forward(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON response")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héé", truncate("héééé", 3))

	long := strings.Repeat("é", 300)
	got := truncate(long, 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 200, utf8.RuneCountInString(got))
}
