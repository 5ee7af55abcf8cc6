// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/drchat/internal/research"
)

// =============================================================================
// HELPERS
// =============================================================================

// runCLI executes the command tree with an isolated config home.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("DRCHAT_HOME", home)
	return home
}

// fakeRelay answers POST /api/query and streams the given SSE payloads.
func fakeRelay(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"requestId":"req-1"}`)
	})
	mux.HandleFunc("GET /api/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", r.URL.Query().Get("request_id"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const (
	progressPayload = `{"type":"progress","step":1,"budgetUsed":0.125,"trackers":{"tokenUsage":1200},"actionState":{"action":"search","thoughts":"look it up"}}`
	finalPayload    = `{"type":"final","answer":"Tides follow the **moon**.","thoughts":"gravity","references":["https://example.com/tides"]}`
	errorPayload    = `{"type":"error","message":"agent failed"}`
)

// =============================================================================
// VERSION AND CONFIG
// =============================================================================

func TestVersion_JSON(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, "version", "--json")
	require.NoError(t, err)

	var resp struct {
		Success bool        `json:"success"`
		Data    VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.Version)
}

func TestConfig_InitPathShow(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.toml")

	out, _, err := runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	out, _, err = runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "not found, using defaults")

	_, _, err = runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, _, err = runCLI(t, "config", "init")
	assert.Error(t, err)
	_, _, err = runCLI(t, "config", "init", "--force")
	assert.NoError(t, err)

	out, _, err = runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, "upstream_url")
}

func TestConfig_URLFlag(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, "--url", "http://relay:9000", "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "http://relay:9000")
}

func TestConfig_InvalidFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[ui]\ntheme = \"neon\"\n"), 0600))
	_, _, err := runCLI(t, "config", "show")
	assert.Error(t, err)
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_PrintsStepsAndAnswer(t *testing.T) {
	isolate(t)
	srv := fakeRelay(t, progressPayload, finalPayload)

	out, status, err := runCLI(t, "--url", srv.URL, "ask", "How", "do", "tides", "work?")
	require.NoError(t, err)
	assert.Contains(t, status, "Step 1")
	assert.Contains(t, status, "search")
	assert.Contains(t, status, "12.50% budget")
	assert.Contains(t, out, "Tides follow the **moon**.")
	assert.NotContains(t, out, "https://example.com/tides")
}

func TestAsk_Details(t *testing.T) {
	isolate(t)
	srv := fakeRelay(t, finalPayload)

	out, _, err := runCLI(t, "--url", srv.URL, "ask", "--details", "tides")
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.com/tides")
	assert.Contains(t, out, "gravity")
}

func TestAsk_JSONLines(t *testing.T) {
	isolate(t)
	srv := fakeRelay(t, progressPayload, finalPayload)

	out, _, err := runCLI(t, "--url", srv.URL, "ask", "--json", "tides")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	first, err := research.DecodeEvent([]byte(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, research.KindProgress, first.Kind())
	last, err := research.DecodeEvent([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, "Tides follow the **moon**.", last.(*research.FinalEvent).Answer)
}

// closedWriter fails every write like a closed pipe.
type closedWriter struct{}

func (closedWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestAsk_JSONWriteFailureStopsStream(t *testing.T) {
	isolate(t)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"requestId":"req-1"}`)
	})
	mux.HandleFunc("GET /api/query", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", progressPayload)
		w.(http.Flusher).Flush()
		// Never finishes on its own.
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	root := NewRootCommand()
	root.SetArgs([]string{"--url", srv.URL, "ask", "--json", "tides"})
	root.SetOut(closedWriter{})
	root.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- root.Execute() }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(5 * time.Second):
		t.Fatal("ask kept streaming after the output closed")
	}
}

func TestAsk_ErrorEvent(t *testing.T) {
	isolate(t)
	srv := fakeRelay(t, progressPayload, errorPayload)

	out, _, err := runCLI(t, "--url", srv.URL, "ask", "tides")
	require.Error(t, err)
	var reported *reportedError
	assert.True(t, errors.As(err, &reported))
	assert.Contains(t, out, "agent failed")
}

func TestAsk_SubmitRejected(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"Failed to process query"}`)
	}))
	defer srv.Close()

	_, _, err := runCLI(t, "--url", srv.URL, "ask", "--json", "tides")
	assert.Error(t, err)
}

func TestAsk_RequiresQuestion(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "ask")
	assert.Error(t, err)

	_, _, err = runCLI(t, "ask", "   ")
	assert.ErrorIs(t, err, research.ErrEmptyQuestion)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_RecordListShowExportDelete(t *testing.T) {
	home := isolate(t)
	srv := fakeRelay(t, finalPayload)

	_, _, err := runCLI(t, "--url", srv.URL, "ask", "How do tides work?")
	require.NoError(t, err)

	out, _, err := runCLI(t, "history", "list", "--json")
	require.NoError(t, err)
	var resp struct {
		Data []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			MessageCount int    `json:"message_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "How do tides work?", resp.Data[0].Title)
	assert.Equal(t, 2, resp.Data[0].MessageCount)
	id := resp.Data[0].ID

	out, _, err = runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id[:8])
	assert.Contains(t, out, "How do tides work?")

	out, _, err = runCLI(t, "history", "show", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "Tides follow the **moon**.")

	out, _, err = runCLI(t, "history", "search", "moon")
	require.NoError(t, err)
	assert.Contains(t, out, id[:8])

	out, _, err = runCLI(t, "history", "search", "volcano")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations match")

	target := filepath.Join(home, "tides.json")
	_, _, err = runCLI(t, "history", "export", id, "--format", "json", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Tides follow the **moon**.")

	_, _, err = runCLI(t, "history", "export", id, "--format", "pdf")
	assert.Error(t, err)

	out, _, err = runCLI(t, "history", "delete", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, _, err = runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet")
}

func TestHistory_NoHistoryFlag(t *testing.T) {
	isolate(t)
	srv := fakeRelay(t, finalPayload)

	_, _, err := runCLI(t, "--url", srv.URL, "ask", "--no-history", "tides")
	require.NoError(t, err)

	out, _, err := runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet")
}

func TestHistory_DeleteAll(t *testing.T) {
	isolate(t)
	srv := fakeRelay(t, finalPayload)
	for _, q := range []string{"one", "two"} {
		_, _, err := runCLI(t, "--url", srv.URL, "ask", q)
		require.NoError(t, err)
	}

	out, _, err := runCLI(t, "history", "delete", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 conversations.")

	_, _, err = runCLI(t, "history", "delete", "--all", "extra")
	assert.Error(t, err)
}

func TestHistory_ShowUnknown(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "history", "show", "nope")
	assert.Error(t, err)
}
