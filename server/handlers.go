package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gaurav-prasanna/deckproxy/core"
	"github.com/gaurav-prasanna/deckproxy/core/naming"
	"github.com/gaurav-prasanna/deckproxy/upstream"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleProxyDownload is the core endpoint: fetch, classify, synthesize
// or pass through, and emit with Content-Disposition set.
func (s *Server) handleProxyDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	filename := r.URL.Query().Get("filename")

	payload, err := s.pipeline.Run(r.Context(), rawURL, filename)
	if err != nil {
		s.writePipelineError(w, rawURL, err)
		return
	}
	defer payload.Close()

	w.Header().Set("Content-Type", payload.ContentType)
	w.Header().Set("Content-Disposition", naming.ContentDisposition(payload.Filename))
	if payload.Length >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(payload.Length, 10))
	}

	if payload.Reader != nil {
		if _, err := io.Copy(w, payload.Reader); err != nil {
			s.logger.Warn("streaming response body failed", zap.String("url", rawURL), zap.Error(err))
		}
		return
	}
	if _, err := w.Write(payload.Bytes); err != nil {
		s.logger.Warn("writing response body failed", zap.String("url", rawURL), zap.Error(err))
	}
}

// writePipelineError maps the pipeline error taxonomy to HTTP statuses:
// validation failures are client errors, failed top-level fetches are
// gateway errors carrying the upstream status.
func (s *Server) writePipelineError(w http.ResponseWriter, rawURL string, err error) {
	if errors.Is(err, core.ErrDisallowedHost) || errors.Is(err, core.ErrInvalidURL) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var upstreamErr *core.UpstreamError
	if errors.As(err, &upstreamErr) {
		s.logger.Warn("top-level fetch failed", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusBadGateway, upstreamErr.Error())
		return
	}

	s.logger.Error("proxy download failed", zap.String("url", rawURL), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "missing API key")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing prompt")
		return
	}

	resp, err := s.upstream.CreateTask(r.Context(), req.APIKey, upstream.TaskRequest{
		Prompt:       req.Prompt,
		TaskID:       req.TaskID,
		AgentProfile: req.AgentProfile,
		TaskMode:     req.TaskMode,
		Attachments:  req.Attachments,
	})
	if err != nil {
		s.writeUpstreamFailure(w, "create task", err)
		return
	}
	s.relay(w, resp, "failed to create task")
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/get-task/")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	apiKey, ok := s.readAPIKey(w, r)
	if !ok {
		return
	}

	resp, err := s.upstream.GetTask(r.Context(), apiKey, taskID)
	if err != nil {
		s.writeUpstreamFailure(w, "get task", err)
		return
	}
	s.relay(w, resp, "failed to get task")
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	// Clean up multipart temp files once the relay is done.
	defer r.MultipartForm.RemoveAll()

	apiKey := r.FormValue("api_key")
	if apiKey == "" {
		writeError(w, http.StatusBadRequest, "missing API key")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	resp, err := s.upstream.UploadFile(r.Context(), apiKey, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeUpstreamFailure(w, "upload file", err)
		return
	}
	if !resp.OK() {
		writeError(w, resp.StatusCode, resp.ErrorMessage("failed to upload file"))
		return
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &uploaded); err != nil {
		writeError(w, http.StatusBadGateway, "unexpected upstream response")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{FileID: uploaded.ID, Filename: header.Filename})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	apiKey, ok := s.readAPIKey(w, r)
	if !ok {
		return
	}

	resp, err := s.upstream.ListFiles(r.Context(), apiKey)
	if err != nil {
		s.writeUpstreamFailure(w, "list files", err)
		return
	}
	s.relay(w, resp, "failed to list files")
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/api/delete-file/")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "missing file id")
		return
	}

	apiKey, ok := s.readAPIKey(w, r)
	if !ok {
		return
	}

	resp, err := s.upstream.DeleteFile(r.Context(), apiKey, fileID)
	if err != nil {
		s.writeUpstreamFailure(w, "delete file", err)
		return
	}
	if !resp.OK() {
		writeError(w, resp.StatusCode, resp.ErrorMessage("failed to delete file"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// readAPIKey decodes the {api_key} request body shared by the relay
// endpoints, writing the client error itself on failure.
func (s *Server) readAPIKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "missing API key")
		return "", false
	}
	return req.APIKey, true
}

// relay forwards an upstream response, re-wrapping errors the way the
// web client expects.
func (s *Server) relay(w http.ResponseWriter, resp *upstream.Response, fallback string) {
	if !resp.OK() {
		writeError(w, resp.StatusCode, resp.ErrorMessage(fallback))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

func (s *Server) writeUpstreamFailure(w http.ResponseWriter, op string, err error) {
	s.logger.Error("upstream call failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "upstream API unreachable")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
