package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskFillsDefaults(t *testing.T) {
	var got TaskRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tasks", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"task_id":"t-1"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).CreateTask(context.Background(), "sk-key", TaskRequest{Prompt: "build a deck"})
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, "Bearer sk-key", gotAuth)
	assert.Equal(t, "build a deck", got.Prompt)
	assert.Equal(t, "manus-1.6-max", got.AgentProfile)
	assert.Equal(t, "agent", got.TaskMode)
}

func TestCreateTaskKeepsCallerValues(t *testing.T) {
	var got TaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateTask(context.Background(), "sk", TaskRequest{
		Prompt:       "continue",
		TaskID:       "t-prev",
		AgentProfile: "manus-lite",
		TaskMode:     "chat",
	})
	require.NoError(t, err)

	assert.Equal(t, "t-prev", got.TaskID)
	assert.Equal(t, "manus-lite", got.AgentProfile)
	assert.Equal(t, "chat", got.TaskMode)
}

func TestGetTaskPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/tasks/t-99", r.URL.Path)
		w.Write([]byte(`{"status":"done"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).GetTask(context.Background(), "sk", "t-99")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"status":"done"}`, string(resp.Body))
}

func TestDeleteFilePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/files/f-3", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).DeleteFile(context.Background(), "sk", "f-3")
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestUploadFileSniffsContentType(t *testing.T) {
	var partType, partFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		partType = header.Header.Get("Content-Type")
		partFilename = header.Filename
		w.Write([]byte(`{"id":"f-1"}`))
	}))
	defer srv.Close()

	// A PDF magic number with no caller content type should be sniffed.
	body := strings.NewReader("%PDF-1.4 content")
	resp, err := NewClient(srv.URL).UploadFile(context.Background(), "sk", "doc.pdf", "", body)
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, "doc.pdf", partFilename)
	assert.Equal(t, "application/pdf", partType)
}

func TestUploadFileKeepsCallerContentType(t *testing.T) {
	var partType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		partType = header.Header.Get("Content-Type")
		w.Write([]byte(`{"id":"f-2"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).UploadFile(context.Background(), "sk", "x.bin", "application/x-custom", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "application/x-custom", partType)
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"nested error", `{"error":{"message":"bad key"}}`, "bad key"},
		{"flat message", `{"message":"rate limited"}`, "rate limited"},
		{"neither", `{"detail":"x"}`, "fallback"},
		{"not json", `<html>`, "fallback"},
		{"nested wins", `{"error":{"message":"nested"},"message":"flat"}`, "nested"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Response{StatusCode: 400, Body: []byte(tc.body)}
			assert.Equal(t, tc.want, r.ErrorMessage("fallback"))
		})
	}
}

func TestOK(t *testing.T) {
	assert.True(t, (&Response{StatusCode: 200}).OK())
	assert.True(t, (&Response{StatusCode: 204}).OK())
	assert.False(t, (&Response{StatusCode: 302}).OK())
	assert.False(t, (&Response{StatusCode: 500}).OK())
}

func TestDefaultBaseURL(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	c = NewClient("https://example.com/v1/")
	assert.Equal(t, "https://example.com/v1", c.baseURL)
}
