package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurav-prasanna/deckproxy/core/deck"
	"github.com/gaurav-prasanna/deckproxy/core/fetch"
	"github.com/gaurav-prasanna/deckproxy/core/naming"
	"github.com/gaurav-prasanna/deckproxy/core/pipeline"
	"github.com/gaurav-prasanna/deckproxy/upstream"
)

// newTestServer wires a Server against a local origin (for downloads)
// and a local fake upstream API, both via httptest. It returns the
// proxy's base URL and the origin's base URL.
func newTestServer(t *testing.T, origin http.Handler, upstreamHandler http.Handler) (string, string) {
	t.Helper()

	var upstreamURL string
	if upstreamHandler != nil {
		fake := httptest.NewServer(upstreamHandler)
		t.Cleanup(fake.Close)
		upstreamURL = fake.URL
	}

	var originURL string
	if origin != nil {
		originSrv := httptest.NewServer(origin)
		t.Cleanup(originSrv.Close)
		originURL = originSrv.URL
	}

	fetcher := fetch.New([]string{"127.0.0.1"})
	p := pipeline.New(fetcher, naming.Default(), deck.NewCompiler(fetcher, nil), nil)
	srv := httptest.NewServer(New(p, upstream.NewClient(upstreamURL), nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL, originURL
}

func TestHealth(t *testing.T) {
	srvURL, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(srvURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestProxyDownloadBinary(t *testing.T) {
	payload := []byte("%PDF-1.7 fake")
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(payload)
	})
	srvURL, originURL := newTestServer(t, origin, nil)

	resp, err := http.Get(srvURL + "/proxy-download?url=" + originURL + "/report&filename=annual")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="annual.pdf"; filename*=UTF-8''annual.pdf`,
		resp.Header.Get("Content-Disposition"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestProxyDownloadJSON(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":42}`))
	})
	srvURL, originURL := newTestServer(t, origin, nil)

	resp, err := http.Get(srvURL + "/proxy-download?url=" + originURL + "/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="data.json"`)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, float64(42), decoded["answer"])
}

func TestProxyDownloadMissingURL(t *testing.T) {
	srvURL, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(srvURL + "/proxy-download")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProxyDownloadDisallowedHost(t *testing.T) {
	srvURL, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(srvURL + "/proxy-download?url=https://evil.example.com/x")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "evil.example.com")
}

func TestProxyDownloadUpstreamFailure(t *testing.T) {
	origin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srvURL, originURL := newTestServer(t, origin, nil)

	resp, err := http.Get(srvURL + "/proxy-download?url=" + originURL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestProxyDownloadMethodNotAllowed(t *testing.T) {
	srvURL, _ := newTestServer(t, nil, nil)

	resp, err := http.Post(srvURL+"/proxy-download?url=https://x", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srvURL, _ := newTestServer(t, nil, nil)

	req, err := http.NewRequest(http.MethodOptions, srvURL+"/proxy-download", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestCreateTaskRelay(t *testing.T) {
	var gotAuth string
	var gotBody upstream.TaskRequest
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, map[string]string{"task_id": "t-1"})
	})
	srvURL, _ := newTestServer(t, nil, fake)

	reqBody := `{"api_key":"sk-test","prompt":"make slides"}`
	resp, err := http.Post(srvURL+"/api/create-task", "application/json", strings.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "make slides", gotBody.Prompt)
	assert.Equal(t, "manus-1.6-max", gotBody.AgentProfile)
	assert.Equal(t, "agent", gotBody.TaskMode)

	var created struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "t-1", created.TaskID)
}

func TestCreateTaskMissingFields(t *testing.T) {
	srvURL, _ := newTestServer(t, nil, nil)

	for name, body := range map[string]string{
		"no key":    `{"prompt":"hi"}`,
		"no prompt": `{"api_key":"sk"}`,
		"bad json":  `{{`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srvURL+"/api/create-task", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetTaskRelay(t *testing.T) {
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/t-42", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
	})
	srvURL, _ := newTestServer(t, nil, fake)

	resp, err := http.Post(srvURL+"/api/get-task/t-42", "application/json",
		strings.NewReader(`{"api_key":"sk"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body["status"])
}

func TestGetTaskUpstreamError(t *testing.T) {
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]string{"message": "invalid API key"},
		})
	})
	srvURL, _ := newTestServer(t, nil, fake)

	resp, err := http.Post(srvURL+"/api/get-task/t-1", "application/json",
		strings.NewReader(`{"api_key":"bad"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid API key", body.Error)
}

func TestUploadFileRelay(t *testing.T) {
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "notes.txt", header.Filename)
		writeJSON(w, http.StatusOK, map[string]string{"id": "f-9"})
	})
	srvURL, _ := newTestServer(t, nil, fake)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("api_key", "sk-test"))
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	resp, err := http.Post(srvURL+"/api/upload-file", form.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "f-9", body.FileID)
	assert.Equal(t, "notes.txt", body.Filename)
}

func TestDeleteFileRelay(t *testing.T) {
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/f-7", r.URL.Path)
		require.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	})
	srvURL, _ := newTestServer(t, nil, fake)

	req, err := http.NewRequest(http.MethodDelete, srvURL+"/api/delete-file/f-7",
		strings.NewReader(`{"api_key":"sk"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["success"])
}

func TestListFilesRelay(t *testing.T) {
	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]any{"files": []string{}})
	})
	srvURL, _ := newTestServer(t, nil, fake)

	resp, err := http.Post(srvURL+"/api/list-files", "application/json",
		strings.NewReader(`{"api_key":"sk"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
