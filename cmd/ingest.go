package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/chunker"
	"github.com/mohammad-safakhou/ragkb/internal/extract"
	"github.com/mohammad-safakhou/ragkb/internal/store"
	"github.com/mohammad-safakhou/ragkb/provider"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var source string
	var docID string

	var ingest = &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Chunk, embed, and store documents without the HTTP server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			llm, err := provider.New(cfg.LLM)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				text, err := extract.FromFilename(path, content)
				if err != nil {
					return fmt.Errorf("extract %s: %w", path, err)
				}
				chunks, err := chunker.ChunkText(text, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
				if err != nil {
					return err
				}
				src := source
				if src == "" {
					src = filepath.Base(path)
				}
				inserted, err := st.InsertChunks(ctx, llm, store.InsertParams{
					Source: src,
					DocID:  docID,
					Chunks: chunks,
					Metadata: map[string]interface{}{
						"ingest_type": "cli",
						"filename":    filepath.Base(path),
					},
				})
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Printf("%s: %d chunks inserted\n", path, inserted)
			}
			return nil
		},
	}
	ingest.Flags().StringVar(&source, "source", "", "logical source identifier (default: file name)")
	ingest.Flags().StringVar(&docID, "doc-id", "", "optional document id for grouping")
	ingest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ingest
}
