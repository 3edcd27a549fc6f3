package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportPerson string

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export persons to Markdown files",
	Long: `Export every person to a Markdown file for backup or migration.

Each file carries the full record as YAML front matter and a readable
body, so an exported directory can be imported again with
"circles import".

Examples:
  circles export ./backup
  circles export ./backup --person 张三`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportPerson, "person", "", "export only this person (id or name)")
}

func runExport(cmd *cobra.Command, args []string) error {
	exportPath := args[0]
	ctx := context.Background()

	if err := store.RefreshPersons(ctx); err != nil {
		return err
	}
	persons := store.Persons()
	if exportPerson != "" {
		p, err := findPerson(exportPerson)
		if err != nil {
			return err
		}
		persons = []models.Person{*p}
	}
	if len(persons) == 0 {
		fmt.Fprintln(stdout, "No persons to export.")
		return nil
	}

	if err := os.MkdirAll(exportPath, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	fmt.Fprintf(stdout, "Exporting %d persons...\n", len(persons))
	exported := 0
	for _, ref := range persons {
		// The list carries profiles only; fetch owned items too.
		p, err := apiClient.GetPerson(ctx, ref.ID)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: skip %s: %v\n", ref.Name, err)
			continue
		}
		data, err := renderPersonMarkdown(p)
		if err != nil {
			return fmt.Errorf("render %s: %w", p.Name, err)
		}
		filename := filepath.Join(exportPath, exportFilename(p))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
		if verbose {
			fmt.Fprintf(stdout, "  %s\n", filename)
		}
		exported++
	}

	fmt.Fprintf(stdout, "Exported %d persons to %s\n", exported, exportPath)
	return nil
}

// exportFilename builds a file name from the id and a path-safe name.
func exportFilename(p *models.Person) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < ' ' {
			return -1
		}
		return r
	}, p.Name)
	return fmt.Sprintf("%d-%s.md", p.ID, strings.TrimSpace(name))
}

// renderPersonMarkdown writes the person as YAML front matter followed by
// a prose body that extraction can read back.
func renderPersonMarkdown(p *models.Person) ([]byte, error) {
	fm, err := yaml.Marshal(p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s\n\n", p.Name)

	if job := p.ProfileString("job"); job != nil {
		fmt.Fprintf(&buf, "%s works as %s.\n", p.Name, *job)
	}
	if b := p.ProfileString("birthday"); b != nil {
		fmt.Fprintf(&buf, "Birthday: %s.\n", *b)
	}
	for _, n := range p.Notes() {
		fmt.Fprintf(&buf, "%s\n", n)
	}
	if len(p.Events) > 0 {
		buf.WriteString("\n### Events\n\n")
		for _, e := range p.Events {
			fmt.Fprintf(&buf, "- %s: %s", e.Date, e.Description)
			if e.Location != nil {
				fmt.Fprintf(&buf, " (%s)", *e.Location)
			}
			buf.WriteString("\n")
		}
	}
	if len(p.Annotations) > 0 {
		buf.WriteString("\n### Observations\n\n")
		for _, a := range p.Annotations {
			fmt.Fprintf(&buf, "- %s: %s\n", a.Time, a.Description)
		}
	}
	if len(p.Developments) > 0 {
		buf.WriteString("\n### Developments\n\n")
		for _, d := range p.Developments {
			fmt.Fprintf(&buf, "- %s: %s\n", d.Type, d.Content)
		}
	}
	return buf.Bytes(), nil
}
