package server

import "encoding/json"

// createTaskRequest is the body accepted by /api/create-task. The
// attachments are relayed to the upstream API without inspection.
type createTaskRequest struct {
	APIKey       string          `json:"api_key"`
	Prompt       string          `json:"prompt"`
	TaskID       string          `json:"task_id"`
	AgentProfile string          `json:"agent_profile"`
	TaskMode     string          `json:"task_mode"`
	Attachments  json.RawMessage `json:"attachments"`
}

// uploadResponse is returned by /api/upload-file.
type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

// healthResponse is returned by /health.
type healthResponse struct {
	Status string `json:"status"`
}

// errorResponse is returned for all error cases.
type errorResponse struct {
	Error string `json:"error"`
}
