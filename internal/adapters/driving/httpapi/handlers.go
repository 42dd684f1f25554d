package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/logger"
)

// queryRequest is the POST /query request body.
type queryRequest struct {
	Question  string   `json:"question"`
	TargetIDs []string `json:"target_ids"`
	TopK      int      `json:"top_k,omitempty"`
}

// queryResponse is the POST /query success body.
type queryResponse struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Warnings []string `json:"warnings,omitempty"`
}

// errorResponse is the body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// historyEntry is one item of the GET /history response.
type historyEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required", "")
		return
	}
	if len(req.TargetIDs) == 0 {
		writeError(w, http.StatusBadRequest, "target_ids is required", "")
		return
	}

	answer, err := s.answers.Answer(r.Context(), domain.QueryRequest{
		Question:  req.Question,
		TargetIDs: req.TargetIDs,
		TopK:      req.TopK,
	})
	if err != nil {
		status, stage := classifyError(err)
		logger.Warn("query failed: %v", err)
		writeError(w, status, err.Error(), stage)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:   answer.Text,
		Sources:  citedSources(answer.Cited),
		Warnings: answer.Warnings,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled", "")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		sources := rec.Sources
		if sources == nil {
			sources = []string{}
		}
		entries = append(entries, historyEntry{
			ID:        rec.ID,
			Question:  rec.Question,
			Answer:    rec.Answer,
			Sources:   sources,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classifyError maps a pipeline failure to an HTTP status and stage name.
// Bad input and an empty target set are client errors, everything else is
// a server-side failure reported with the stage that broke.
func classifyError(err error) (int, string) {
	stage := ""
	var serr *domain.StageError
	if errors.As(err, &serr) {
		stage = string(serr.Stage)
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, stage
	case stage == string(domain.StageResolve) && errors.Is(err, domain.ErrNoDocuments):
		return http.StatusBadRequest, stage
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, stage
	default:
		return http.StatusInternalServerError, stage
	}
}

// citedSources returns the unique source names of cited chunks in
// citation order.
func citedSources(cited []domain.Chunk) []string {
	seen := make(map[string]struct{}, len(cited))
	sources := make([]string, 0, len(cited))
	for _, c := range cited {
		if _, ok := seen[c.SourceName]; ok {
			continue
		}
		seen[c.SourceName] = struct{}{}
		sources = append(sources, c.SourceName)
	}
	return sources
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, stage string) {
	writeJSON(w, status, errorResponse{Error: msg, Stage: stage})
}
