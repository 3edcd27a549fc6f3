package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/circles/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts and server statistics",
	Long: `Show how many persons and relations are stored, plus in-memory
timing and token statistics of the running server.

Examples:
  circles stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := apiClient.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Fprintf(stdout, "Persons:   %d\n", st.Persons)
	fmt.Fprintf(stdout, "Relations: %d\n\n", st.Relations)
	printServerStats(st.Metrics)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(m metrics.Snapshot) {
	fmt.Fprintf(stdout, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(stdout, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(stdout, "Uptime: %.1f seconds\n", m.UptimeSeconds)

	for _, op := range []struct {
		title string
		snap  *metrics.OperationSnapshot
	}{
		{"LLM Generate", m.LLMGenerate},
		{"Extract", m.Extract},
		{"Check Name", m.CheckName},
		{"Compare", m.Compare},
		{"Confirm", m.Confirm},
		{"DB Query", m.DBQuery},
		{"Layout Save", m.LayoutSave},
	} {
		if op.snap == nil {
			continue
		}
		fmt.Fprintf(stdout, "\n%s:\n", op.title)
		printOpStats(op.snap)
		printTokenStats(op.snap)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Fprintf(stdout, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(stdout, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(stdout, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(stdout, ", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Fprintf(stdout, ", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(stdout, ", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Fprintf(stdout, ", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Fprintln(stdout)
}
