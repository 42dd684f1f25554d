// Package services contains the application core: the pipeline that
// turns a question and a set of remote documents into a grounded answer.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillworks/driveanswer/internal/chunker"
	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
	"github.com/quillworks/driveanswer/internal/core/ports/driving"
	"github.com/quillworks/driveanswer/internal/extractors"
	"github.com/quillworks/driveanswer/internal/logger"
	"github.com/quillworks/driveanswer/internal/retry"
	"github.com/quillworks/driveanswer/internal/walker"
)

// Ensure AnswerService implements the driving port.
var _ driving.AnswerService = (*AnswerService)(nil)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 2

// DefaultDownloadConcurrency bounds parallel downloads per request.
const DefaultDownloadConcurrency = 4

// DefaultEmbedBatchSize bounds texts per embedding call to respect the
// embedding API's payload limits.
const DefaultEmbedBatchSize = 64

// Options configures the answering pipeline.
type Options struct {
	// Policy decides whether a single failing file aborts the request
	// (strict) or is skipped with a warning (lenient).
	Policy domain.FailurePolicy

	// TopK is the number of chunks to retrieve per question.
	TopK int

	// DownloadConcurrency bounds parallel download/extract workers.
	DownloadConcurrency int

	// EmbedBatchSize bounds texts per embedding call.
	EmbedBatchSize int

	// Retry bounds retries of transient remote failures.
	Retry retry.Policy

	// MaxTokens caps the generated answer length. Zero leaves the model
	// default in place.
	MaxTokens int
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.Policy == "" {
		o.Policy = domain.PolicyStrict
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.DownloadConcurrency <= 0 {
		o.DownloadConcurrency = DefaultDownloadConcurrency
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = retry.DefaultPolicy
	}
	return o
}

// AnswerService runs the document-to-answer pipeline: resolve targets,
// fetch and extract documents, chunk, embed into a per-request index
// collection, retrieve the most similar chunks and generate the answer.
type AnswerService struct {
	store    driven.FileStore
	walker   *walker.Walker
	registry *extractors.Registry
	splitter *chunker.Splitter
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	llm      driven.LLMService
	answers  driven.AnswerStore
	opts     Options
}

// NewAnswerService wires the pipeline from its collaborators. The answer
// store is optional; every other dependency is required.
func NewAnswerService(
	store driven.FileStore,
	wlk *walker.Walker,
	registry *extractors.Registry,
	splitter *chunker.Splitter,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	llm driven.LLMService,
	answers driven.AnswerStore,
	opts Options,
) *AnswerService {
	return &AnswerService{
		store:    store,
		walker:   wlk,
		registry: registry,
		splitter: splitter,
		embedder: embedder,
		index:    index,
		llm:      llm,
		answers:  answers,
		opts:     opts.withDefaults(),
	}
}

// fetchResult carries one file's extraction outcome through the fan-out.
type fetchResult struct {
	doc     domain.ExtractedDocument
	skipped string // warning text when the lenient policy skipped the file
}

// Answer runs the full pipeline for one request. On failure it returns a
// *domain.StageError naming the failing stage; no partial answer escapes.
func (s *AnswerService) Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.NewStageError(domain.StageResolve,
			fmt.Errorf("%w: empty question", domain.ErrInvalidInput))
	}
	if len(req.TargetIDs) == 0 {
		return nil, domain.NewStageError(domain.StageResolve, domain.ErrNoDocuments)
	}

	// Resolve targets into a flat file list. No MIME filter is applied
	// here: files of an unhandled type must reach the extractor so the
	// strict/lenient policy decides their fate.
	logger.Stage("Resolve")
	files, err := s.walker.Expand(ctx, req.TargetIDs, nil)
	if err != nil {
		return nil, domain.NewStageError(domain.StageResolve, err)
	}
	if len(files) == 0 {
		return nil, domain.NewStageError(domain.StageResolve, domain.ErrNoDocuments)
	}
	logger.Info("resolved %d file(s)", len(files))

	// Fetch and extract, fanned out with bounded workers. Results are
	// kept in source order: chunk sequence indices are only meaningful
	// within their document, and citation order follows the file list.
	logger.Stage("Fetch & Extract")
	docs, warnings, err := s.fetchAll(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.NewStageError(domain.StageExtract, domain.ErrNoDocuments)
	}

	// Chunk every document, preserving document order.
	logger.Stage("Chunk")
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.splitter.Split(doc.Source, doc.Text)...)
	}
	if len(chunks) == 0 {
		return nil, domain.NewStageError(domain.StageChunk, domain.ErrNoDocuments)
	}
	logger.Info("produced %d chunk(s) from %d document(s)", len(chunks), len(docs))

	// Embed chunks and index them in a collection scoped to this request.
	collection := "req-" + uuid.New().String()
	logger.Stage("Embed & Index")
	if err := s.index.CreateCollection(ctx, collection, s.embedder.Dimensions()); err != nil {
		return nil, domain.NewStageError(domain.StageIndex, err)
	}
	defer func() {
		// The collection is request-scoped; drop it so no state leaks
		// into later requests, even when a later stage fails. Best
		// effort on the way out.
		if err := s.index.DropCollection(context.WithoutCancel(ctx), collection); err != nil {
			logger.Warn("drop collection %s: %v", collection, err)
		}
	}()
	if err := s.embedAndIndex(ctx, collection, chunks); err != nil {
		return nil, err
	}

	// Retrieve the chunks most similar to the question.
	logger.Stage("Retrieve")
	topK := req.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}
	cited, err := s.retrieve(ctx, collection, req.Question, topK)
	if err != nil {
		return nil, err
	}

	// Compose the prompt and generate the answer.
	logger.Stage("Generate")
	answerText, err := s.generate(ctx, req.Question, cited)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Text:     answerText,
		Cited:    cited,
		Warnings: warnings,
	}

	s.record(ctx, req.Question, answer)
	return answer, nil
}

// fetchAll downloads and extracts every file, restoring source order.
// Failures are handled per the configured policy.
func (s *AnswerService) fetchAll(ctx context.Context, files []domain.FileRef) ([]domain.ExtractedDocument, []string, error) {
	results := make([]*fetchResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.DownloadConcurrency)

	for i, file := range files {
		g.Go(func() error {
			res, err := s.fetchOne(gctx, file)
			if err != nil {
				if s.opts.Policy == domain.PolicyLenient && !domain.IsRetryable(err) {
					// Format-level failures are skippable; exhausted
					// remote retries still abort the request.
					logger.Warn("skipping %s: %v", file.Name, err)
					results[i] = &fetchResult{skipped: fmt.Sprintf("skipped %s: %v", file.Name, err)}
					return nil
				}
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stage := domain.StageFetch
		if errors.Is(err, domain.ErrUnsupportedType) || errors.Is(err, domain.ErrDecode) || errors.Is(err, domain.ErrEmptyDocument) {
			stage = domain.StageExtract
		}
		return nil, nil, domain.NewStageError(stage, err)
	}

	var docs []domain.ExtractedDocument
	var warnings []string
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.skipped != "" {
			warnings = append(warnings, res.skipped)
			continue
		}
		docs = append(docs, res.doc)
	}
	return docs, warnings, nil
}

// fetchOne downloads one file and extracts its text. Download failures
// are retried; extraction failures are not.
func (s *AnswerService) fetchOne(ctx context.Context, file domain.FileRef) (*fetchResult, error) {
	var data []byte
	mimeType := file.MIMEType

	err := retry.Do(ctx, s.opts.Retry, "download "+file.Name, func(ctx context.Context) error {
		var err error
		data, mimeType, err = s.store.DownloadBytes(ctx, file.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", file.Name, err)
	}
	if mimeType == "" {
		mimeType = file.MIMEType
	}

	extractor, err := s.registry.ForMIME(mimeType)
	if err != nil {
		return nil, err
	}

	text, err := extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", file.Name, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, file.Name)
	}

	return &fetchResult{doc: domain.ExtractedDocument{Source: file, Text: text}}, nil
}

// embedAndIndex embeds all chunks in bounded batches and inserts them
// into the request collection, which the caller has already created.
func (s *AnswerService) embedAndIndex(ctx context.Context, collection string, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += s.opts.EmbedBatchSize {
		end := start + s.opts.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := retry.Do(ctx, s.opts.Retry, "embed batch", func(ctx context.Context) error {
			var err error
			vectors, err = s.embedder.EmbedBatch(ctx, texts)
			return err
		})
		if err != nil {
			return domain.NewStageError(domain.StageEmbed, err)
		}
		if len(vectors) != len(batch) {
			return domain.NewStageError(domain.StageEmbed,
				fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(batch), len(vectors)))
		}

		embedded := make([]domain.EmbeddedChunk, len(batch))
		for i, c := range batch {
			embedded[i] = domain.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
		}

		if err := s.index.Upsert(ctx, collection, embedded); err != nil {
			return domain.NewStageError(domain.StageIndex, err)
		}
	}

	logger.Info("indexed %d chunk(s) into collection %s", len(chunks), collection)
	return nil
}

// retrieve embeds the question and returns the top-k nearest chunks.
func (s *AnswerService) retrieve(ctx context.Context, collection, question string, topK int) ([]domain.Chunk, error) {
	var queryVector []float32
	err := retry.Do(ctx, s.opts.Retry, "embed question", func(ctx context.Context) error {
		var err error
		queryVector, err = s.embedder.Embed(ctx, question)
		return err
	})
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieve, err)
	}

	scored, err := s.index.Query(ctx, collection, queryVector, topK)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieve, err)
	}

	cited := make([]domain.Chunk, len(scored))
	for i, sc := range scored {
		cited[i] = sc.Chunk
		logger.Debug("retrieved chunk %s/%d (score %.4f)", sc.Chunk.SourceName, sc.Chunk.SequenceIndex, sc.Score)
	}
	return cited, nil
}

// generate composes the grounded prompt and invokes the language model.
func (s *AnswerService) generate(ctx context.Context, question string, cited []domain.Chunk) (string, error) {
	prompt := BuildPrompt(question, cited)

	var text string
	err := retry.Do(ctx, s.opts.Retry, "generate answer", func(ctx context.Context) error {
		var err error
		text, err = s.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: s.opts.MaxTokens})
		return err
	})
	if err != nil {
		return "", domain.NewStageError(domain.StageGenerate, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewStageError(domain.StageGenerate,
			errors.New("language model returned an empty answer"))
	}
	return text, nil
}

// record persists the answer to the history store, best effort.
func (s *AnswerService) record(ctx context.Context, question string, answer *domain.Answer) {
	if s.answers == nil {
		return
	}

	sources := make([]string, 0, len(answer.Cited))
	seen := make(map[string]bool)
	for _, c := range answer.Cited {
		if !seen[c.SourceName] {
			seen[c.SourceName] = true
			sources = append(sources, c.SourceName)
		}
	}

	rec := domain.AnswerRecord{
		ID:       uuid.New().String(),
		Question: question,
		Answer:   answer.Text,
		Sources:  sources,
	}
	if err := s.answers.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("record answer: %v", err)
	}
}
