package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/node"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/executor"
	"github.com/spf13/cobra"
)

const loadBatchSize = 1000

var (
	searchDocs            string
	searchIndex           string
	searchField           string
	searchFields          []string
	searchLimit           int
	searchExact           bool
	searchAnalyzeWildcard bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Load a JSON-lines document file into a fresh node and search it",
	Long: `Loads every line of --docs ({"id": ..., "fields": {...}}) into --index and
runs the query against --field. The query is "value" or "field:value"; an
unescaped * or ? makes it a wildcard query.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchDocs, "docs", "", "JSON-lines file of documents (required)")
	f.StringVar(&searchIndex, "index", "", "index to load and search (required)")
	f.StringVar(&searchField, "field", "", "default field of the query")
	f.StringSliceVar(&searchFields, "fields", nil, "mappings as name[:analyzer] when --index is not configured")
	f.IntVarP(&searchLimit, "limit", "n", 0, "maximum number of hits, 0 for search.defaultLimit")
	f.BoolVar(&searchExact, "exact", false, "look the query up as a single token without analysis")
	f.BoolVar(&searchAnalyzeWildcard, "analyze-wildcard", false, "run wildcard literals through the field analyzer")
	_ = searchCmd.MarkFlagRequired("docs")
	_ = searchCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := node.Open(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	if !hasIndex(n.Indices(), searchIndex) {
		mappings, err := parseMappings(searchFields)
		if err != nil {
			return err
		}
		if err := n.CreateIndex(searchIndex, mappings); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	file, err := os.Open(searchDocs)
	if err != nil {
		return fmt.Errorf("opening documents: %w", err)
	}
	defer file.Close()
	if err := loadDocuments(ctx, n, searchIndex, file); err != nil {
		return err
	}
	if err := n.Refresh(searchIndex); err != nil {
		return err
	}

	limit := searchLimit
	if limit == 0 {
		limit = cfg.Search.DefaultLimit
	}
	var result *executor.SearchResult
	if searchExact {
		if searchField == "" {
			return fmt.Errorf("--exact needs --field")
		}
		result, err = n.SearchExact(ctx, searchIndex, searchField, args[0])
	} else {
		result, err = n.QueryString(ctx, searchIndex, searchField, args[0], searchAnalyzeWildcard, limit)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(out))
	return nil
}

func loadDocuments(ctx context.Context, n *node.Node, index string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	var batch []ingestion.Document
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := n.BulkAddBatch(ctx, index, batch)
		if err != nil {
			return err
		}
		for _, r := range res.Results {
			if r.Status == ingestion.StatusRejected {
				slog.Warn("document rejected", "id", r.DocID, "code", r.Code, "reason", r.Reason)
			}
		}
		batch = batch[:0]
		return nil
	}

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc ingestion.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, doc)
		if len(batch) == loadBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading documents: %w", err)
	}
	return flush()
}

// parseMappings turns "name[:analyzer]" specs into text field mappings.
func parseMappings(specs []string) ([]schema.FieldMapping, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("index %q is not configured; pass --fields", searchIndex)
	}
	mappings := make([]schema.FieldMapping, 0, len(specs))
	for _, spec := range specs {
		name, analyzer, _ := strings.Cut(spec, ":")
		m := schema.FieldMapping{Name: name, Type: schema.TypeText, Analyzer: analyzer}
		if analyzer == schema.TypeKeyword {
			m.Type = schema.TypeKeyword
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func hasIndex(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
