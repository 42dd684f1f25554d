package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/driveanswer/internal/chunker"
	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
	"github.com/quillworks/driveanswer/internal/extractors"
	"github.com/quillworks/driveanswer/internal/retry"
	"github.com/quillworks/driveanswer/internal/walker"
)

// --- fakes -----------------------------------------------------------------

// fakeStore serves a static hierarchy from memory.
type fakeStore struct {
	files    map[string]domain.FileRef
	children map[string][]string
	content  map[string][]byte
	downErr  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:    make(map[string]domain.FileRef),
		children: make(map[string][]string),
		content:  make(map[string][]byte),
		downErr:  make(map[string]error),
	}
}

func (s *fakeStore) addFolder(id string) {
	s.files[id] = domain.FileRef{ID: id, Name: id, MIMEType: domain.MIMETypeFolder, IsFolder: true}
}

func (s *fakeStore) addFile(id, parent, name, mime string, content []byte) {
	s.files[id] = domain.FileRef{ID: id, Name: name, MIMEType: mime, ParentID: parent}
	if parent != "" {
		s.children[parent] = append(s.children[parent], id)
	}
	s.content[id] = content
}

func (s *fakeStore) GetFile(_ context.Context, id string) (domain.FileRef, error) {
	ref, ok := s.files[id]
	if !ok {
		return domain.FileRef{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return ref, nil
}

func (s *fakeStore) ListChildren(_ context.Context, folderID string, opts driven.ListOptions) ([]domain.FileRef, error) {
	var refs []domain.FileRef
	for _, id := range s.children[folderID] {
		ref := s.files[id]
		if !ref.IsFolder && len(opts.MIMETypes) > 0 && !containsString(opts.MIMETypes, ref.MIMEType) {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *fakeStore) DownloadBytes(_ context.Context, fileID string) ([]byte, string, error) {
	if err := s.downErr[fileID]; err != nil {
		return nil, "", err
	}
	data, ok := s.content[fileID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrNotFound, fileID)
	}
	return data, s.files[fileID].MIMEType, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// fakeEmbedder maps text to a deterministic 4-dimensional vector.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	var length, vowels, spaces, other float32
	for _, r := range text {
		length++
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		case ' ':
			spaces++
		default:
			other++
		}
	}
	return []float32{length, vowels, spaces, other}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int            { return 4 }
func (fakeEmbedder) ModelName() string          { return "fake-embed" }
func (fakeEmbedder) Ping(context.Context) error { return nil }
func (fakeEmbedder) Close() error               { return nil }

// fakeIndex is a cosine-similarity index that records collection lifecycle.
type fakeIndex struct {
	mu          sync.Mutex
	collections map[string][]domain.EmbeddedChunk
	dropped     []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{collections: make(map[string][]domain.EmbeddedChunk)}
}

func (f *fakeIndex) CreateCollection(_ context.Context, name string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = nil
	}
	return nil
}

func (f *fakeIndex) DropCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, collection string, chunks []domain.EmbeddedChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], chunks...)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, collection string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, collection)
	}

	scored := make([]domain.ScoredChunk, 0, len(items))
	for _, item := range items {
		scored = append(scored, domain.ScoredChunk{Chunk: item.Chunk, Score: cosine(vector, item.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (f *fakeIndex) Close() error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fakeLLM echoes a canned answer and captures the prompt.
type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) ModelName() string          { return "fake-llm" }
func (f *fakeLLM) Ping(context.Context) error { return nil }
func (f *fakeLLM) Close() error               { return nil }

// --- helpers ---------------------------------------------------------------

func newService(t *testing.T, store *fakeStore, index *fakeIndex, llm *fakeLLM, opts Options) *AnswerService {
	t.Helper()

	splitter, err := chunker.New(chunker.WithChunkSize(64), chunker.WithOverlap(16))
	require.NoError(t, err)

	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Policy{MaxAttempts: 1}
	}

	return NewAnswerService(
		store,
		walker.New(store),
		extractors.Defaults(),
		splitter,
		fakeEmbedder{},
		index,
		llm,
		nil,
		opts,
	)
}

// --- tests -----------------------------------------------------------------

func TestAnswerFolderWithTwoDocuments(t *testing.T) {
	store := newFakeStore()
	store.addFolder("folder")
	store.addFile("f1", "folder", "report.txt", "text/plain",
		[]byte("The key finding is that revenue doubled in the last quarter."))
	store.addFile("f2", "folder", "notes.txt", "text/plain",
		[]byte("Meeting notes: discussed hiring plans and office space."))

	index := newFakeIndex()
	llm := &fakeLLM{answer: "Revenue doubled in the last quarter."}
	svc := newService(t, store, index, llm, Options{TopK: 2})

	answer, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "What is the key finding?",
		TargetIDs: []string{"folder"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	assert.LessOrEqual(t, len(answer.Cited), 2)
	assert.NotEmpty(t, answer.Cited)
	assert.Empty(t, answer.Warnings)

	// The prompt must embed the retrieved chunk text and the question.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "What is the key finding?")
	assert.Contains(t, llm.prompts[0], answer.Cited[0].Text)
}

func TestAnswerEmptyTargets(t *testing.T) {
	svc := newService(t, newFakeStore(), newFakeIndex(), &fakeLLM{answer: "x"}, Options{})

	_, err := svc.Answer(context.Background(), domain.QueryRequest{Question: "anything?"})
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageResolve, stageErr.Stage)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	svc := newService(t, newFakeStore(), newFakeIndex(), &fakeLLM{answer: "x"}, Options{})

	_, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "   ",
		TargetIDs: []string{"f1"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnswerUnsupportedTypeStrict(t *testing.T) {
	store := newFakeStore()
	store.addFile("good", "", "doc.txt", "text/plain", []byte("useful content here"))
	store.addFile("bad", "", "logo.png", "image/png", []byte{0x89, 0x50})

	index := newFakeIndex()
	llm := &fakeLLM{answer: "an answer"}
	svc := newService(t, store, index, llm, Options{Policy: domain.PolicyStrict})

	_, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "what does it say?",
		TargetIDs: []string{"good", "bad"},
	})
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageExtract, stageErr.Stage)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestAnswerUnsupportedTypeLenient(t *testing.T) {
	store := newFakeStore()
	store.addFile("good", "", "doc.txt", "text/plain", []byte("the project ships in June"))
	store.addFile("bad", "", "logo.png", "image/png", []byte{0x89, 0x50})

	index := newFakeIndex()
	llm := &fakeLLM{answer: "It ships in June."}
	svc := newService(t, store, index, llm, Options{Policy: domain.PolicyLenient})

	answer, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "when does the project ship?",
		TargetIDs: []string{"good", "bad"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	require.Len(t, answer.Warnings, 1)
	assert.Contains(t, answer.Warnings[0], "logo.png")
}

func TestAnswerUndecodableFileLenient(t *testing.T) {
	store := newFakeStore()
	store.addFile("good", "", "doc.txt", "text/plain", []byte("still answerable content"))
	store.addFile("bad", "", "broken.txt", "text/plain", []byte{0xff, 0xfe})

	svc := newService(t, store, newFakeIndex(), &fakeLLM{answer: "yes"}, Options{Policy: domain.PolicyLenient})

	answer, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "is it answerable?",
		TargetIDs: []string{"good", "bad"},
	})
	require.NoError(t, err)
	require.Len(t, answer.Warnings, 1)
	assert.Contains(t, answer.Warnings[0], "broken.txt")
}

func TestAnswerAllFilesSkippedLenient(t *testing.T) {
	store := newFakeStore()
	store.addFile("bad", "", "broken.txt", "text/plain", []byte{0xff})

	svc := newService(t, store, newFakeIndex(), &fakeLLM{answer: "x"}, Options{Policy: domain.PolicyLenient})

	_, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "anything?",
		TargetIDs: []string{"bad"},
	})
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageExtract, stageErr.Stage)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestAnswerDropsRequestCollection(t *testing.T) {
	store := newFakeStore()
	store.addFile("f1", "", "doc.txt", "text/plain", []byte("short document body"))

	index := newFakeIndex()
	svc := newService(t, store, index, &fakeLLM{answer: "done"}, Options{})

	_, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "what?",
		TargetIDs: []string{"f1"},
	})
	require.NoError(t, err)

	index.mu.Lock()
	defer index.mu.Unlock()
	assert.Empty(t, index.collections, "request collection must not outlive the request")
	assert.Len(t, index.dropped, 1)
}

func TestAnswerDropsCollectionOnEmbedFailure(t *testing.T) {
	store := newFakeStore()
	store.addFile("f1", "", "doc.txt", "text/plain", []byte("content that never gets embedded"))

	index := newFakeIndex()

	splitter, err := chunker.New(chunker.WithChunkSize(64), chunker.WithOverlap(16))
	require.NoError(t, err)

	svc := NewAnswerService(
		store,
		walker.New(store),
		extractors.Defaults(),
		splitter,
		errorEmbedder{},
		index,
		&fakeLLM{answer: "unreached"},
		nil,
		Options{Retry: retry.Policy{MaxAttempts: 1}},
	)

	_, err = svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "what?",
		TargetIDs: []string{"f1"},
	})
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageEmbed, stageErr.Stage)

	// The collection was created before embedding failed; it must still
	// be dropped on the way out.
	index.mu.Lock()
	defer index.mu.Unlock()
	assert.Empty(t, index.collections, "failed request must not leave its collection behind")
	assert.Len(t, index.dropped, 1)
}

// errorEmbedder fails every batch call with a non-retryable error.
type errorEmbedder struct {
	fakeEmbedder
}

func (errorEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, domain.NewRemoteError("embed", false, errors.New("bad request"))
}

func TestAnswerIdempotentCitations(t *testing.T) {
	store := newFakeStore()
	store.addFolder("folder")
	store.addFile("f1", "folder", "a.txt", "text/plain",
		[]byte("alpha beta gamma delta epsilon zeta eta theta"))
	store.addFile("f2", "folder", "b.txt", "text/plain",
		[]byte("one two three four five six seven eight nine ten"))

	llm := &fakeLLM{answer: "stable answer"}
	req := domain.QueryRequest{Question: "what comes after alpha?", TargetIDs: []string{"folder"}}

	cite := func() []string {
		svc := newService(t, store, newFakeIndex(), llm, Options{TopK: 2})
		answer, err := svc.Answer(context.Background(), req)
		require.NoError(t, err)
		keys := make([]string, len(answer.Cited))
		for i, c := range answer.Cited {
			keys[i] = fmt.Sprintf("%s/%d", c.SourceID, c.SequenceIndex)
		}
		return keys
	}

	assert.Equal(t, cite(), cite())
}

func TestAnswerGenerateFailure(t *testing.T) {
	store := newFakeStore()
	store.addFile("f1", "", "doc.txt", "text/plain", []byte("content"))

	llm := &fakeLLM{err: domain.NewRemoteError("generate", false, errors.New("model overloaded"))}
	svc := newService(t, store, newFakeIndex(), llm, Options{})

	_, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "what?",
		TargetIDs: []string{"f1"},
	})
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageGenerate, stageErr.Stage)
}

func TestAnswerDownloadRetriesTransientFailure(t *testing.T) {
	store := newFakeStore()
	store.addFile("f1", "", "doc.txt", "text/plain", []byte("eventually fetched"))

	attempts := 0
	flaky := &flakyStore{fakeStore: store, failUntil: 2, attempts: &attempts}

	splitter, err := chunker.New(chunker.WithChunkSize(64), chunker.WithOverlap(16))
	require.NoError(t, err)

	svc := NewAnswerService(
		flaky,
		walker.New(flaky),
		extractors.Defaults(),
		splitter,
		fakeEmbedder{},
		newFakeIndex(),
		&fakeLLM{answer: "got it"},
		nil,
		Options{Retry: retry.Policy{MaxAttempts: 3, BaseDelay: 1}},
	)

	answer, err := svc.Answer(context.Background(), domain.QueryRequest{
		Question:  "what?",
		TargetIDs: []string{"f1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "got it", answer.Text)
	assert.Equal(t, 2, attempts)
}

// flakyStore fails the first downloads with a retryable error.
type flakyStore struct {
	*fakeStore
	failUntil int
	attempts  *int
}

func (s *flakyStore) DownloadBytes(ctx context.Context, fileID string) ([]byte, string, error) {
	*s.attempts++
	if *s.attempts < s.failUntil {
		return nil, "", domain.NewRemoteError("download", true, errors.New("rate limited"))
	}
	return s.fakeStore.DownloadBytes(ctx, fileID)
}
