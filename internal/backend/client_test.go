// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/drchat/internal/research"
)

// fakeAPI serves POST /api/query and an SSE body for GET /api/query.
func fakeAPI(t *testing.T, stream string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/query" && r.Method == http.MethodPost:
			var req research.QueryRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, research.DefaultBudget, req.Budget)
			assert.Equal(t, research.DefaultMaxBadAttempt, req.MaxBadAttempt)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"requestId":"req-1"}`)
		case r.URL.Path == "/api/query" && r.Method == http.MethodGet:
			assert.Equal(t, "req-1", r.URL.Query().Get("request_id"))
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, stream)
		case r.URL.Path == "/health":
			fmt.Fprint(w, `{"status":"healthy"}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func collect(events *[]research.Event) Handler {
	return func(ev research.Event) {
		*events = append(*events, ev)
	}
}

func TestAsk_ProgressThenFinal(t *testing.T) {
	srv := fakeAPI(t, ""+
		"data: {\"type\":\"progress\",\"step\":1,\"trackers\":{},\"actionState\":{\"action\":\"search\",\"thoughts\":\"\"}}\n\n"+
		"data: {\"type\":\"heartbeat\"}\n\n"+
		": comment\n\n"+
		"data: {\"type\":\"final\",\"answer\":\"42\"}\n\n"+
		"data: {\"type\":\"progress\",\"step\":99,\"trackers\":{},\"actionState\":{\"action\":\"late\",\"thoughts\":\"\"}}\n\n")
	defer srv.Close()

	var events []research.Event
	err := NewClient(srv.URL).Ask(context.Background(), "what is the answer?", collect(&events))
	require.NoError(t, err)

	require.Len(t, events, 2, "unknown events skipped, nothing after final")
	assert.Equal(t, research.KindProgress, events[0].Kind())
	assert.Equal(t, "42", events[1].(*research.FinalEvent).Answer)
}

func TestStream_ErrorEventIsTerminal(t *testing.T) {
	srv := fakeAPI(t, "data: {\"type\":\"error\",\"message\":\"boom\"}\n\nevent: close\ndata: {}\n\n")
	defer srv.Close()

	var events []research.Event
	err := NewClient(srv.URL).Stream(context.Background(), "req-1", collect(&events))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "boom", events[0].(*research.ErrorEvent).Message)
}

func TestStream_CloseWithoutTerminal(t *testing.T) {
	srv := fakeAPI(t, "event: close\ndata: {}\n\n")
	defer srv.Close()

	err := NewClient(srv.URL).Stream(context.Background(), "req-1", func(research.Event) {})
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStream_EOFWithoutTerminal(t *testing.T) {
	srv := fakeAPI(t, "data: {\"type\":\"progress\",\"step\":1,\"trackers\":{},\"actionState\":{\"action\":\"a\",\"thoughts\":\"\"}}\n\n")
	defer srv.Close()

	var events []research.Event
	err := NewClient(srv.URL).Stream(context.Background(), "req-1", collect(&events))
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Len(t, events, 1)
}

func TestStream_MalformedPayloadSkipped(t *testing.T) {
	srv := fakeAPI(t, ""+
		"data: {not json\n\n"+
		"data: : keepalive\n\n"+
		"data: {\"type\":\"final\",\"answer\":\"still here\"}\n\n")
	defer srv.Close()

	var events []research.Event
	err := NewClient(srv.URL).Stream(context.Background(), "req-1", collect(&events))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "still here", events[0].(*research.FinalEvent).Answer)
}

func TestStream_OpenFailureKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Stream(context.Background(), "req-1", func(research.Event) {})
	var se *StreamError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "req-1", se.RequestID)
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestAPIError_Detail(t *testing.T) {
	tests := []struct {
		name string
		err  APIError
		want string
	}{
		{"message and details", APIError{Status: 502, Message: "Failed", Details: "down"}, "HTTP 502: Failed: down"},
		{"message only", APIError{Status: 400, Message: "bad"}, "HTTP 400: bad"},
		{"raw body only", APIError{Status: 502, Details: "<html>bad gateway</html>"}, "HTTP 502: <html>bad gateway</html>"},
		{"empty", APIError{Status: 500}, "HTTP 500"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Detail())
		})
	}
}

func TestStream_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewClient(srv.URL).Stream(ctx, "req-1", func(research.Event) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"Failed to process query","details":"upstream down"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Submit(context.Background(), research.NewQueryRequest("q"))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Failed to process query", apiErr.Message)
	assert.Equal(t, "upstream down", apiErr.Details)
	assert.Equal(t, "Failed to send message", apiErr.Error())
}

func TestSubmit_NoRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Submit(context.Background(), research.NewQueryRequest("q"))
	assert.ErrorIs(t, err, ErrNoRequestID)
	assert.Equal(t, "No request ID received", err.Error())
}

func TestSubmit_BlankQuestionNotSent(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Submit(context.Background(), research.NewQueryRequest("   "))
	assert.ErrorIs(t, err, research.ErrEmptyQuestion)
	assert.False(t, called)
}

func TestHealth(t *testing.T) {
	srv := fakeAPI(t, "")
	defer srv.Close()
	require.NoError(t, NewClient(srv.URL+"/").Health(context.Background()))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"degraded"}`)
	}))
	defer bad.Close()
	assert.Error(t, NewClient(bad.URL).Health(context.Background()))
}
