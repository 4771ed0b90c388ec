package schemaquery

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/schemaquery/schemaquery/internal/artifact"
	"github.com/schemaquery/schemaquery/internal/config"
	"github.com/schemaquery/schemaquery/internal/nl2sql"
	"github.com/schemaquery/schemaquery/internal/pipeline"
	duckdbengine "github.com/schemaquery/schemaquery/internal/query/duckdb"
	"github.com/schemaquery/schemaquery/internal/schema"
	"github.com/schemaquery/schemaquery/internal/storage"
	s3store "github.com/schemaquery/schemaquery/internal/storage/s3"
)

// NewOptions builds the engine, generator and artifact resolver described by
// cfg. The object store is only attached when an endpoint and bucket are set.
func NewOptions(cfg config.Config, logger *slog.Logger) (Options, error) {
	generator, err := nl2sql.NewGenerator(cfg.AI, logger)
	if err != nil {
		return Options{}, fmt.Errorf("configure generator: %w", err)
	}

	var store storage.ObjectStore
	if strings.TrimSpace(cfg.ObjectStore.Endpoint) != "" && strings.TrimSpace(cfg.ObjectStore.Bucket) != "" {
		s3, err := s3store.New(s3store.ConfigFrom(cfg.ObjectStore))
		if err != nil {
			return Options{}, fmt.Errorf("configure object store: %w", err)
		}
		store = s3
	}

	return Options{
		Service: &pipeline.Service{
			Opener: duckdbengine.NewEngine(duckdbengine.Options{
				Threads:     cfg.Engine.Threads,
				MemoryLimit: cfg.Engine.MemoryLimit,
			}),
			Generator:        generator,
			Logger:           logger,
			ExecutionTimeout: cfg.Execution.Timeout,
			ExtractOptions: schema.Options{
				PreviewRows: cfg.Extract.PreviewRows,
				MaxColumns:  cfg.Extract.MaxColumns,
			},
		},
		Resolver: &artifact.Resolver{Store: store, MaxBytes: cfg.Artifacts.MaxBytes},
		Gatherer: prometheus.DefaultGatherer,
	}, nil
}
