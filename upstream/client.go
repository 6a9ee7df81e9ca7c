// Package upstream is the client for the agent task/file API. Every call
// carries a caller-supplied credential; the proxy holds no credentials of
// its own and relays upstream responses without interpreting their task
// semantics.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.manus.im/v1"

const (
	defaultAgentProfile = "manus-1.6-max"
	defaultTaskMode     = "agent"
	requestTimeout      = 120 * time.Second
)

// Client talks to the upstream API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// TaskRequest is the create-task payload. Attachments are relayed opaque.
type TaskRequest struct {
	Prompt       string          `json:"prompt"`
	TaskID       string          `json:"task_id,omitempty"`
	AgentProfile string          `json:"agent_profile"`
	TaskMode     string          `json:"task_mode"`
	Attachments  json.RawMessage `json:"attachments,omitempty"`
}

// Response is a relayed upstream response: status and raw JSON body.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the upstream call succeeded.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrorMessage extracts the most specific error string the upstream body
// offers, falling back to the given default.
func (r *Response) ErrorMessage(fallback string) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &body); err == nil {
		if body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fallback
}

// CreateTask submits a new task, filling in the default agent profile
// and task mode when the caller left them empty.
func (c *Client) CreateTask(ctx context.Context, apiKey string, req TaskRequest) (*Response, error) {
	if req.AgentProfile == "" {
		req.AgentProfile = defaultAgentProfile
	}
	if req.TaskMode == "" {
		req.TaskMode = defaultTaskMode
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling task request: %w", err)
	}
	return c.do(ctx, apiKey, http.MethodPost, "/tasks", "application/json", bytes.NewReader(body))
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, apiKey, taskID string) (*Response, error) {
	return c.do(ctx, apiKey, http.MethodGet, "/tasks/"+taskID, "", nil)
}

// ListFiles lists the caller's uploaded files.
func (c *Client) ListFiles(ctx context.Context, apiKey string) (*Response, error) {
	return c.do(ctx, apiKey, http.MethodGet, "/files", "", nil)
}

// DeleteFile deletes one file by id.
func (c *Client) DeleteFile(ctx context.Context, apiKey, fileID string) (*Response, error) {
	return c.do(ctx, apiKey, http.MethodDelete, "/files/"+fileID, "", nil)
}

// UploadFile relays a file as multipart form data. When the caller gave
// no content type, the part's type is sniffed from the leading bytes.
func (c *Client) UploadFile(ctx context.Context, apiKey, filename, contentType string, file io.Reader) (*Response, error) {
	if contentType == "" {
		header := make([]byte, 3072)
		n, _ := io.ReadFull(file, header)
		contentType = mimetype.Detect(header[:n]).String()
		file = io.MultiReader(bytes.NewReader(header[:n]), file)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	partHeader.Set("Content-Type", contentType)

	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copying file into multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	return c.do(ctx, apiKey, http.MethodPost, "/files", writer.FormDataContentType(), &buf)
}

// do issues one authenticated request and buffers the response.
func (c *Client) do(ctx context.Context, apiKey, method, path, contentType string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling upstream API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
