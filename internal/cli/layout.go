package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the relationship graph",
	RunE:  runGraph,
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Inspect or change the saved graph layout",
	Long: `Inspect or change the saved graph layout.

Changes go through a live layout session on the server: they are merged
into the stored layout, so positions of nodes not touched here are kept.

Examples:
  circles layout show
  circles layout move 12 140 -80
  circles layout zoom 1.5
  circles layout reset`,
}

var layoutShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved layout",
	Args:  cobra.NoArgs,
	RunE:  runLayoutShow,
}

var layoutMoveCmd = &cobra.Command{
	Use:   "move <node-id> <x> <y>",
	Short: "Move one node",
	Args:  cobra.ExactArgs(3),
	RunE:  runLayoutMove,
}

var layoutZoomCmd = &cobra.Command{
	Use:   "zoom <level>",
	Short: "Set the zoom level",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayoutZoom,
}

var layoutResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved layout",
	Args:  cobra.NoArgs,
	RunE:  runLayoutReset,
}

func init() {
	layoutCmd.AddCommand(layoutShowCmd)
	layoutCmd.AddCommand(layoutMoveCmd)
	layoutCmd.AddCommand(layoutZoomCmd)
	layoutCmd.AddCommand(layoutResetCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := store.RefreshGraph(ctx); err != nil {
		return err
	}
	g := store.Graph()

	names := make(map[int64]string, len(g.Nodes))
	for _, n := range g.Nodes {
		names[n.ID] = n.Name
	}
	fmt.Fprintf(stdout, "%d persons, %d relations\n", len(g.Nodes), len(g.Edges))
	for _, e := range g.Edges {
		fmt.Fprintf(stdout, "  %s ─%s─ %s\n", names[e.Source], e.RelationType, names[e.Target])
	}
	return nil
}

func runLayoutShow(cmd *cobra.Command, args []string) error {
	l, err := apiClient.GetGraphLayout(context.Background())
	if err != nil {
		return fmt.Errorf("get layout: %w", err)
	}
	if l == nil {
		fmt.Fprintln(stdout, "No saved layout.")
		return nil
	}
	printLayout(l)
	return nil
}

func printLayout(l *models.GraphLayout) {
	fmt.Fprintf(stdout, "zoom %.2f, pan (%.0f, %.0f), %d nodes\n", l.Zoom, l.Pan.X, l.Pan.Y, len(l.Nodes))
	if !verbose {
		return
	}
	ids := make([]string, 0, len(l.Nodes))
	for id := range l.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := l.Nodes[id]
		fmt.Fprintf(stdout, "  %-6s %8.1f %8.1f\n", id, p.X, p.Y)
	}
}

func runLayoutMove(cmd *cobra.Command, args []string) error {
	x, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid y: %w", err)
	}
	return withView(func(v viewEditor) error {
		return v.MoveNode(args[0], models.Point{X: x, Y: y})
	})
}

func runLayoutZoom(cmd *cobra.Command, args []string) error {
	z, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid zoom: %w", err)
	}
	return withView(func(v viewEditor) error {
		return v.SetZoom(z)
	})
}

func runLayoutReset(cmd *cobra.Command, args []string) error {
	if err := apiClient.ResetGraphLayout(context.Background()); err != nil {
		return fmt.Errorf("reset layout: %w", err)
	}
	fmt.Fprintln(stdout, "Layout reset.")
	return nil
}

// viewEditor is the part of a live layout session used by the commands.
type viewEditor interface {
	MoveNode(id string, p models.Point) error
	SetZoom(z float64) error
}

// withView opens a layout session, applies edit and saves immediately.
func withView(edit func(viewEditor) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
	defer cancel()

	v, err := apiClient.OpenView(ctx)
	if err != nil {
		return fmt.Errorf("open layout session: %w", err)
	}
	defer v.Close()

	if err := edit(v); err != nil {
		return err
	}
	n, err := v.Save(ctx)
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	fmt.Fprintf(stdout, "Layout saved (%d nodes).\n", n)
	return nil
}
