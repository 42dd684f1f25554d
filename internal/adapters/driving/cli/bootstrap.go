package cli

import (
	"context"
	"fmt"

	"github.com/quillworks/driveanswer/internal/adapters/driven/ai"
	"github.com/quillworks/driveanswer/internal/adapters/driven/answerstore/sqlite"
	"github.com/quillworks/driveanswer/internal/adapters/driven/config/file"
	"github.com/quillworks/driveanswer/internal/adapters/driven/filestore/drive"
	"github.com/quillworks/driveanswer/internal/chunker"
	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
	"github.com/quillworks/driveanswer/internal/core/services"
	"github.com/quillworks/driveanswer/internal/extractors"
	"github.com/quillworks/driveanswer/internal/logger"
	"github.com/quillworks/driveanswer/internal/retry"
	"github.com/quillworks/driveanswer/internal/walker"
)

// application bundles the wired service with everything that needs
// closing on shutdown.
type application struct {
	settings *file.Settings
	answers  *services.AnswerService
	history  driven.AnswerStore

	closers []func() error
}

// Close releases all resources in reverse construction order.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("closing resource: %v", err)
		}
	}
}

// buildApplication wires the full pipeline from configuration. Embedding
// and LLM backends are pinged during startup so misconfiguration fails
// fast instead of on the first request.
func buildApplication(ctx context.Context) (*application, error) {
	settings, err := file.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	app := &application{settings: settings}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	if settings.Drive.CredentialsFile == "" || settings.Drive.TokenFile == "" {
		return nil, fmt.Errorf("drive credentials_file and token_file must be configured")
	}
	ts, err := drive.TokenSourceFromFiles(ctx, settings.Drive.CredentialsFile, settings.Drive.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("drive auth: %w", err)
	}
	store, err := drive.NewStore(ctx, drive.Config{
		TokenSource: ts,
		QPS:         settings.Drive.QPS,
	})
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(settings.Pipeline.ChunkSize),
		chunker.WithOverlap(settings.Pipeline.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := ai.CreateAndValidateEmbeddingService(settings.Embedding)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, embedder.Close)

	llm, err := ai.CreateAndValidateLLMService(settings.LLM)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, llm.Close)

	index, err := ai.CreateVectorIndex(settings.Vector)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, index.Close)

	if settings.History.Enabled {
		history, err := sqlite.NewStore(settings.History.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		app.history = history
		app.closers = append(app.closers, history.Close)
	}

	policy := domain.PolicyLenient
	if settings.Pipeline.Strict {
		policy = domain.PolicyStrict
	}

	opts := services.Options{
		Policy:              policy,
		TopK:                settings.Pipeline.TopK,
		DownloadConcurrency: settings.Pipeline.DownloadConcurrency,
		EmbedBatchSize:      settings.Pipeline.EmbedBatchSize,
		MaxTokens:           settings.LLM.MaxTokens,
	}
	if settings.Pipeline.RetryAttempts > 0 {
		opts.Retry = retry.Policy{
			MaxAttempts: settings.Pipeline.RetryAttempts,
			BaseDelay:   retry.DefaultPolicy.BaseDelay,
		}
	}

	wlk := walker.New(store, walker.WithMaxDepth(settings.Pipeline.MaxDepth))

	app.answers = services.NewAnswerService(
		store,
		wlk,
		extractors.Defaults(),
		splitter,
		embedder,
		index,
		llm,
		app.history,
		opts,
	)

	logger.Info("pipeline ready: embedding=%s llm=%s vector=%s",
		embedder.ModelName(), llm.ModelName(), settings.Vector.Provider)

	ok = true
	return app, nil
}
