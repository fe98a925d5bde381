package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/cppcontext-mcp/internal/parser"
	"github.com/dshills/cppcontext-mcp/internal/searcher"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

var (
	flagTopK       int
	flagFilter     string
	flagPath       string
	flagExtensions []string
	flagNoCache    bool
	flagShowText   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about the indexed code",
	Example: `  cppcontext query "struct FHitResult"
  cppcontext query "how does collision detection work" --top-k 10
  cppcontext query "replication" --filter "origin:engine AND file:header"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var describeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show an entity's inheritance, members and includes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	queryCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "number of chunks to return (default from config)")
	queryCmd.Flags().StringVar(&flagFilter, "filter", "", "filter expression, e.g. \"type:struct AND macro:UPROPERTY\"")
	queryCmd.Flags().StringVar(&flagPath, "path", "", "only chunks whose path contains this substring")
	queryCmd.Flags().StringSliceVar(&flagExtensions, "ext", nil, "only chunks from files with these extensions")
	queryCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "bypass the result cache")
	queryCmd.Flags().BoolVar(&flagShowText, "text", false, "print chunk text")
	rootCmd.AddCommand(queryCmd, describeCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	filters, err := searcher.ParseFilter(flagFilter)
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.searcher(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	topK := flagTopK
	if topK <= 0 {
		topK = a.cfg.Search.TopK
	}

	resp, err := s.Query(cmd.Context(), searcher.QueryRequest{
		Question: strings.Join(args, " "),
		TopK:     topK,
		Scope:    searcher.Scope{PathContains: flagPath, Extensions: flagExtensions},
		Filters:  filters,
		NoCache:  flagNoCache,
	})
	if err != nil {
		return withRemediation(err)
	}

	if flagJSON {
		return printJSON(resp)
	}

	in := resp.Intent
	fmt.Printf("intent: %s (%s, confidence %.2f)", in.Type, in.Rule, in.Confidence)
	if in.EntityName != "" {
		fmt.Printf(" entity %s", in.EntityName)
		if in.EntityType.Known() {
			fmt.Printf(" [%s]", in.EntityType)
		}
	}
	fmt.Println()

	printDefinitions(resp.DefinitionResults)

	for _, r := range resp.SemanticResults {
		c := r.Chunk
		fmt.Printf("\n#%d  %.3f  %s  (chunk %d/%d, %s)\n", r.Rank, r.Score, c.Path, c.ChunkIndex+1, c.TotalChunks, c.Origin)
		if len(c.Entities) > 0 {
			fmt.Printf("    entities: %s\n", strings.Join(c.Entities, ", "))
		}
		if flagShowText {
			fmt.Println(indent(c.Text))
		}
	}

	fmt.Printf("\n%s", formatTiming(resp))
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.searcher(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	defs, err := s.Describe(cmd.Context(), args[0])
	if err != nil {
		return withRemediation(err)
	}
	if flagJSON {
		return printJSON(defs)
	}
	if len(defs) == 0 {
		fmt.Printf("No entity matches %q.\n", args[0])
		return nil
	}
	printDefinitions(defs)
	return nil
}

func printDefinitions(defs []types.DefinitionResult) {
	for _, d := range defs {
		match := "exact"
		if !d.Exact {
			match = fmt.Sprintf("matched %q, score %.2f", d.Query, d.Score)
		}
		fmt.Printf("\n%s (%s)  %s:%d\n", d.MatchedName, match, d.Entity.Path, d.Line)
		fmt.Print(parser.RenderTree(d.Entity))
		if flagShowText && d.Definition != "" {
			fmt.Println(indent(d.Definition))
		}
	}
}

func formatTiming(resp *types.QueryResponse) string {
	t := resp.Timing
	cached := ""
	if resp.CacheHit {
		cached = " (cached)"
	}
	return fmt.Sprintf("took %s%s: classify %s, structural %s, embed %s, search %s\n",
		t.Total, cached, t.Classify, t.Structural, t.Embed, t.Search)
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    | " + l
	}
	return strings.Join(lines, "\n")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
