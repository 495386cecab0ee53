package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/infrastructure/inference"
	"nuvia-server/internal/infrastructure/repository/knowledgerepo"
	"nuvia-server/internal/infrastructure/repository/tenantrepo"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge base commands",
	Long:  `Load documents into a tenant's knowledge base and test retrieval against it.`,
}

var kbIngestCmd = &cobra.Command{
	Use:   "ingest <tenant-slug> <file>",
	Short: "Chunk, embed and store a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runKBIngest,
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <tenant-slug> <query>",
	Short: "Run a retrieval query and print the matching chunks",
	Args:  cobra.ExactArgs(2),
	RunE:  runKBSearch,
}

func init() {
	kbCmd.AddCommand(kbIngestCmd)
	kbCmd.AddCommand(kbSearchCmd)

	kbIngestCmd.Flags().String("title", "", "Document title (defaults to the file name)")
	kbIngestCmd.Flags().String("source", "cli", "Document source label")
	kbSearchCmd.Flags().Int("limit", 4, "Maximum chunks to return")
}

func runKBIngest(cmd *cobra.Command, args []string) error {
	cfg, db, log, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	tn, err := tenantrepo.NewRepository(db).FindBySlug(ctx, args[0])
	if err != nil {
		return err
	}
	content, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = filepath.Base(args[1])
	}
	source, _ := cmd.Flags().GetString("source")

	inferenceClient := inference.NewClient(inference.Config{
		BaseURL: cfg.InferenceBaseURL,
		APIKey:  cfg.InferenceAPIKey,
		Timeout: cfg.InferenceTimeout,
	}, log)
	indexer := knowledge.NewIndexer(knowledgerepo.NewRepository(db), inferenceClient, log)

	tenantCfg := tn.ResolveConfig(cfg.DefaultChatModel, cfg.DefaultEmbeddingModel)
	doc, err := indexer.Ingest(ctx, tn.ID, title, source, tenantCfg.EmbeddingModel, string(content))
	if err != nil {
		return err
	}
	fmt.Printf("document %d (%q) ingested\n", doc.ID, doc.Title)
	return nil
}

func runKBSearch(cmd *cobra.Command, args []string) error {
	cfg, db, log, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	tn, err := tenantrepo.NewRepository(db).FindBySlug(ctx, args[0])
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	inferenceClient := inference.NewClient(inference.Config{
		BaseURL: cfg.InferenceBaseURL,
		APIKey:  cfg.InferenceAPIKey,
		Timeout: cfg.InferenceTimeout,
	}, log)
	retriever := knowledge.NewRetriever(knowledgerepo.NewRepository(db),
		inferenceClient, inferenceClient, cfg.DefaultChatModel, limit, log)

	tenantCfg := tn.ResolveConfig(cfg.DefaultChatModel, cfg.DefaultEmbeddingModel)
	chunks := retriever.Retrieve(ctx, tn.ID, tenantCfg.EmbeddingModel, args[1])
	if len(chunks) == 0 {
		fmt.Println("no chunks matched")
		return nil
	}
	for _, c := range chunks {
		fmt.Printf("--- document %d, distance %.4f ---\n%s\n\n", c.DocumentID, c.Distance, c.Content)
	}
	return nil
}
