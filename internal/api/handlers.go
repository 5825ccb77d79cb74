package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/geoff/internal/service"
)

// Codes for failures that never reach the service.
const (
	codeBadRequest = "E_BAD_REQUEST"
	codeTimeout    = "E_TIMEOUT"
	codeInternal   = "E_INTERNAL"
)

type queryRequest struct {
	Prompt string `json:"prompt"`
}

type planRequest struct {
	Plan json.RawMessage `json:"plan"`
}

type exampleView struct {
	Question string   `json:"question"`
	Sources  []string `json:"sources"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// query answers a natural-language question. A question that fails after
// every retry is still a 200 whose body carries sql and error.
func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	resp, err := h.backend.Ask(r.Context(), req.Prompt)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// plan runs a caller-supplied plan without generation.
func (h *handler) plan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if len(req.Plan) == 0 || string(req.Plan) == "null" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "plan is required")
		return
	}

	resp, err := h.backend.RunPlan(r.Context(), req.Plan)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) examples(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("limit must be a non-negative integer, got %q", s))
			return
		}
		limit = n
	}

	list := h.backend.Examples().Limit(limit)
	out := make([]exampleView, len(list))
	for i, ex := range list {
		out[i] = exampleView{Question: ex.Question, Sources: ex.Sources}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) schemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.Catalog().Grouped())
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serviceError maps a service failure onto a status and error body.
func (h *handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "request timed out")
		return
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the body.
		return
	}

	var se *service.Error
	if !errors.As(err, &se) {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch se.Code {
	case service.CodePlanInvalid:
		status = http.StatusBadRequest
	case service.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, string(se.Code), se.Message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
