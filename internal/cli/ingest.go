package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/harbor-analytics/claimlens/internal/config"
	"github.com/harbor-analytics/claimlens/internal/ingest"
	"github.com/harbor-analytics/claimlens/internal/storage"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var (
		dir      string
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the search index",
		Long:  "Loads, chunks, embeds, and indexes every supported document in a directory. Re-ingesting a document replaces its previous chunks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(dir, failFast)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents to ingest (defaults to CLAIMLENS_DOCUMENTS_DIR)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort on the first document error")

	return cmd
}

func runIngest(dir string, failFast bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dir == "" {
		dir = cfg.DocumentsDir
	}
	if failFast {
		cfg.FailFast = true
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	idx, pool, err := newPgIndex(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer pool.Close()

	embSvc, err := newEmbeddingService(cfg)
	if err != nil {
		return err
	}

	svc, err := newIngestService(cfg, embSvc, idx)
	if err != nil {
		return err
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		svc.WithArchiver(s3Client)
	}

	report, err := svc.IngestDirectory(ctx, dir)
	if report != nil {
		printReport(report)
	}
	if err == nil && report != nil && report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", report.Failed, len(report.Files))
	}
	return err
}

func printReport(report *ingest.Report) {
	for _, fr := range report.Files {
		switch {
		case fr.Err != nil:
			fmt.Printf("FAIL  %s: %v\n", fr.Path, fr.Err)
		case fr.ChunksSkipped > 0:
			fmt.Printf("OK    %s: %d chunks indexed, %d skipped\n", fr.Path, fr.Chunks, fr.ChunksSkipped)
		default:
			fmt.Printf("OK    %s: %d chunks indexed\n", fr.Path, fr.Chunks)
		}
	}
	fmt.Printf("\n%d documents indexed, %d failed, %d chunks total (%s)\n",
		report.Succeeded, report.Failed, report.Chunks, report.Elapsed.Round(time.Millisecond))
}
