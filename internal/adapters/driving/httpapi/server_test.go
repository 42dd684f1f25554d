package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

type stubAnswerService struct {
	answer  *domain.Answer
	err     error
	lastReq domain.QueryRequest
}

func (s *stubAnswerService) Answer(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

type stubAnswerStore struct {
	records []domain.AnswerRecord
	err     error
}

func (s *stubAnswerStore) Save(_ context.Context, rec domain.AnswerRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *stubAnswerStore) List(_ context.Context, limit int) ([]domain.AnswerRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func (s *stubAnswerStore) Close() error { return nil }

func postQuery(t *testing.T, handler http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQuerySuccess(t *testing.T) {
	svc := &stubAnswerService{
		answer: &domain.Answer{
			Text: "Revenue doubled in Q3.",
			Cited: []domain.Chunk{
				{SourceName: "report.pdf", Text: "..."},
				{SourceName: "report.pdf", Text: "..."},
				{SourceName: "notes.txt", Text: "..."},
			},
			Warnings: []string{"skipped logo.png: unsupported document type"},
		},
	}
	srv := NewServer(svc, nil, Config{})

	rec := postQuery(t, srv.Handler(), queryRequest{
		Question:  "What changed in Q3?",
		TargetIDs: []string{"folder-1"},
		TopK:      3,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Revenue doubled in Q3.", resp.Answer)
	assert.Equal(t, []string{"report.pdf", "notes.txt"}, resp.Sources)
	assert.Len(t, resp.Warnings, 1)

	assert.Equal(t, "What changed in Q3?", svc.lastReq.Question)
	assert.Equal(t, 3, svc.lastReq.TopK)
}

func TestQueryMissingQuestion(t *testing.T) {
	srv := NewServer(&stubAnswerService{}, nil, Config{})
	rec := postQuery(t, srv.Handler(), queryRequest{TargetIDs: []string{"f1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryMissingTargets(t *testing.T) {
	srv := NewServer(&stubAnswerService{}, nil, Config{})
	rec := postQuery(t, srv.Handler(), queryRequest{Question: "anything?"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryMalformedBody(t *testing.T) {
	srv := NewServer(&stubAnswerService{}, nil, Config{})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryNoDocumentsIsClientError(t *testing.T) {
	svc := &stubAnswerService{
		err: domain.NewStageError(domain.StageResolve, domain.ErrNoDocuments),
	}
	srv := NewServer(svc, nil, Config{})

	rec := postQuery(t, srv.Handler(), queryRequest{Question: "q", TargetIDs: []string{"empty-folder"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "resolve", resp.Stage)
}

func TestQueryUnknownTargetIsNotFound(t *testing.T) {
	svc := &stubAnswerService{
		err: domain.NewStageError(domain.StageResolve, domain.ErrNotFound),
	}
	srv := NewServer(svc, nil, Config{})

	rec := postQuery(t, srv.Handler(), queryRequest{Question: "q", TargetIDs: []string{"ghost"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryPipelineFailureReportsStage(t *testing.T) {
	svc := &stubAnswerService{
		err: domain.NewStageError(domain.StageEmbed,
			domain.NewRemoteError("openai embed", true, assert.AnError)),
	}
	srv := NewServer(svc, nil, Config{})

	rec := postQuery(t, srv.Handler(), queryRequest{Question: "q", TargetIDs: []string{"f1"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "embed", resp.Stage)
	assert.NotEmpty(t, resp.Error)
}

func TestHistoryReturnsRecords(t *testing.T) {
	store := &stubAnswerStore{records: []domain.AnswerRecord{
		{ID: "r1", Question: "q1", Answer: "a1", Sources: []string{"x.txt"}, CreatedAt: time.Now().UTC()},
		{ID: "r2", Question: "q2", Answer: "a2", CreatedAt: time.Now().UTC()},
	}}
	srv := NewServer(&stubAnswerService{}, store, Config{})

	req := httptest.NewRequest(http.MethodGet, "/history?limit=1", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []historyEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].ID)
	assert.Equal(t, []string{"x.txt"}, entries[0].Sources)
}

func TestHistoryInvalidLimit(t *testing.T) {
	srv := NewServer(&stubAnswerService{}, &stubAnswerStore{}, Config{})
	req := httptest.NewRequest(http.MethodGet, "/history?limit=banana", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	srv := NewServer(&stubAnswerService{}, nil, Config{})
	req := httptest.NewRequest(http.MethodGet, "/history", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := NewServer(&stubAnswerService{}, nil, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
