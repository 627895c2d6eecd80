// Command vectordb is a CLI over the in-memory vector database core.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gauravreddy08/vector-db/pkg/chunkstore"
	"github.com/gauravreddy08/vector-db/pkg/embedding"
	"github.com/gauravreddy08/vector-db/pkg/filter"
	"github.com/gauravreddy08/vector-db/pkg/logging"
	"github.com/gauravreddy08/vector-db/pkg/orchestrate"
	"github.com/gauravreddy08/vector-db/pkg/registry"
)

var (
	dbPath     string
	embedDim   int
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "vectordb",
	Short: "CLI for the in-memory vector database core",
	Long:  "A command-line interface for creating libraries, ingesting chunks, building indexes, and running similarity search.",
}

func newService() (*orchestrate.Service, func(), error) {
	var store chunkstore.Store
	closer := func() {}

	if dbPath != "" {
		ctx := context.Background()
		sqliteStore, err := chunkstore.OpenSQLite(ctx, dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store = sqliteStore
		closer = func() { _ = sqliteStore.Close() }
	} else {
		store = chunkstore.NewMemory()
	}

	provider := embedding.NewDeterministicProvider(embedDim)
	reg := registry.New(store, provider)
	svc := orchestrate.New(store, reg, provider, logging.NewStd(logging.LevelInfo))
	return svc, closer, nil
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage libraries",
}

var libraryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a library bound to one index kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		paramsStr, _ := cmd.Flags().GetString("params")

		params, err := parseJSONMap(paramsStr)
		if err != nil {
			return fmt.Errorf("invalid params JSON: %w", err)
		}

		svc, closer, err := newService()
		if err != nil {
			return err
		}
		defer closer()

		lib, err := svc.CreateLibrary(orchestrate.CreateLibraryRequest{
			Name:        args[0],
			IndexKind:   registry.Kind(kind),
			IndexParams: params,
		})
		if err != nil {
			return fmt.Errorf("create library: %w", err)
		}
		fmt.Printf("library %q created (id=%s, kind=%s)\n", lib.Name, lib.ID, lib.IndexKind)
		return nil
	},
}

var chunkAddCmd = &cobra.Command{
	Use:   "add <library-id> <text>",
	Short: "Embed and add a chunk to a library",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadataStr, _ := cmd.Flags().GetString("metadata")
		metadata, err := parseJSONMap(metadataStr)
		if err != nil {
			return fmt.Errorf("invalid metadata JSON: %w", err)
		}

		svc, closer, err := newService()
		if err != nil {
			return err
		}
		defer closer()

		chunk, err := svc.CreateChunk(cmd.Context(), orchestrate.CreateChunkRequest{
			LibraryID: args[0],
			Text:      args[1],
			Metadata:  metadata,
		})
		if err != nil {
			return fmt.Errorf("add chunk: %w", err)
		}
		fmt.Printf("chunk %s added to document %s\n", chunk.ID, chunk.DocumentID)
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <library-id>",
	Short: "Build (or rebuild) a library's index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := newService()
		if err != nil {
			return err
		}
		defer closer()

		if err := svc.Build(args[0]); err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		fmt.Printf("library %s index built\n", args[0])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <library-id> <query-text>",
	Short: "Search a library's index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		filterStr, _ := cmd.Flags().GetString("filter")

		f, err := parseFilter(filterStr)
		if err != nil {
			return fmt.Errorf("invalid filter JSON: %w", err)
		}

		svc, closer, err := newService()
		if err != nil {
			return err
		}
		defer closer()

		results, err := svc.Search(cmd.Context(), args[0], args[1], k, f)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		for _, r := range results {
			fmt.Printf("%.4f  %s  %s\n", r.Score, r.Chunk.ID, truncate(r.Chunk.Text, 60))
		}
		return nil
	},
}

func parseJSONMap(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseFilter(s string) (filter.Filter, error) {
	m, err := parseJSONMap(s)
	if err != nil {
		return nil, err
	}
	return filter.Filter(m), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "optional path to a durable SQLite chunk store (default: in-memory)")
	rootCmd.PersistentFlags().IntVar(&embedDim, "dim", 32, "embedding dimension used by the built-in deterministic provider")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results as JSON where applicable")

	libraryCreateCmd.Flags().String("kind", "linear", "index kind: linear, ivf, or nsw")
	libraryCreateCmd.Flags().String("params", "", "index parameters as a JSON object")

	chunkAddCmd.Flags().String("metadata", "", "chunk metadata as a JSON object")

	searchCmd.Flags().Int("k", 10, "number of results to return")
	searchCmd.Flags().String("filter", "", "metadata filter as a JSON object")

	libraryCmd.AddCommand(libraryCreateCmd)

	rootCmd.AddCommand(libraryCmd, chunkAddCmd, buildCmd, searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
