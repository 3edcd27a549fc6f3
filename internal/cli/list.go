package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List known persons",
	Long: `List known persons, optionally only those whose name contains query.

Examples:
  circles list
  circles list 张`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show everything stored about a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := store.RefreshPersons(ctx); err != nil {
		return err
	}

	var query string
	if len(args) == 1 {
		query = args[0]
	}

	var rows []models.Person
	for _, p := range store.Persons() {
		if query == "" || strings.Contains(p.Name, query) {
			rows = append(rows, p)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No persons found.")
		return nil
	}

	fmt.Fprintf(stdout, "%-6s %-20s %-24s %s\n", "ID", "NAME", "JOB", "BIRTHDAY")
	for _, p := range rows {
		fmt.Fprintf(stdout, "%-6d %-20s %-24s %s\n", p.ID, p.Name,
			models.Deref(p.ProfileString("job")), models.Deref(p.ProfileString("birthday")))
	}
	if verbose {
		fmt.Fprintf(stdout, "\n%d person(s)\n", len(rows))
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := store.RefreshPersons(ctx); err != nil {
		return err
	}
	ref, err := findPerson(args[0])
	if err != nil {
		return err
	}
	p, err := apiClient.GetPerson(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("get person: %w", err)
	}
	printPerson(p)
	if err := store.RefreshCircles(ctx); err != nil {
		logger.Warn("circles unavailable", "error", err)
		return nil
	}
	if cs := store.CirclesOf(p.ID); len(cs) > 0 {
		names := make([]string, len(cs))
		for i, c := range cs {
			names[i] = c.Name
		}
		fmt.Fprintf(stdout, "  circles:  %s\n", strings.Join(names, ", "))
	}
	return nil
}

// printPerson renders a stored person with item ids, so single items can
// be removed with "circles delete".
func printPerson(p *models.Person) {
	h := defaultTheme.headingStyle()
	fmt.Fprintln(stdout, h.Render(fmt.Sprintf("%s (id %d)", p.Name, p.ID)))
	if job := p.ProfileString("job"); job != nil {
		fmt.Fprintf(stdout, "  job:      %s\n", *job)
	}
	if b := p.ProfileString("birthday"); b != nil {
		fmt.Fprintf(stdout, "  birthday: %s\n", *b)
	}
	for _, n := range p.Notes() {
		fmt.Fprintf(stdout, "  note:     %s\n", n)
	}
	fmt.Fprintf(stdout, "  added:    %s\n", p.CreatedAt.Format("2006-01-02"))

	if len(p.Events) > 0 {
		fmt.Fprintln(stdout, h.Render("\nEvents"))
		printEvents(stdout, p.Events)
	}
	if len(p.Annotations) > 0 {
		fmt.Fprintln(stdout, h.Render("\nAnnotations"))
		for _, a := range p.Annotations {
			fmt.Fprintf(stdout, "  [%s] %s %s\n", itemID(a.ID), a.Time, a.Description)
		}
	}
	if len(p.Developments) > 0 {
		fmt.Fprintln(stdout, h.Render("\nDevelopments"))
		for _, d := range p.Developments {
			fmt.Fprintf(stdout, "  [%s] %s: %s\n", itemID(d.ID), d.Type, d.Content)
		}
	}
}

func itemID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
