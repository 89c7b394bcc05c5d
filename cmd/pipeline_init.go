package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/postcall-cli/internal/pipeline"
	"github.com/sells-group/postcall-cli/internal/store"
	"github.com/sells-group/postcall-cli/pkg/anthropic"
	"github.com/sells-group/postcall-cli/pkg/sheets"
)

// pipelineEnv bundles the pipeline with the resources that need closing.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initStore opens and migrates the run-history database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline validates configuration and builds the pipeline with its
// external clients. When withCRM is false the sheets client is not built and
// the CRM stage is skipped.
func initPipeline(ctx context.Context, withCRM bool) (*pipelineEnv, error) {
	if err := cfg.Validate(withCRM); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	aiClient := anthropic.NewClient(cfg.Anthropic.Key)

	var sheetsClient sheets.Client
	if withCRM {
		sheetsClient, err = sheets.NewClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID,
			sheets.WithRateLimit(cfg.Sheets.RateLimitPerSec))
		if err != nil {
			st.Close()
			return nil, eris.Wrap(err, "init sheets client")
		}
	}

	return &pipelineEnv{
		Pipeline: pipeline.New(cfg, st, aiClient, sheetsClient),
		Store:    st,
	}, nil
}
