package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/circles/internal/parser"
	"github.com/raphaelgruber/circles/internal/reconcile"
	"github.com/raphaelgruber/circles/internal/service"
	"github.com/spf13/cobra"
)

var (
	importOnConflict  string
	importName        string
	importConcurrency int
	importNoWait      bool
	importDryRun      bool
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import persons from Markdown or text notes",
	Long: `Import persons from notes without interactive review.

Each .md or .txt file describes one person. A Markdown file with two or
more "## Name" sections describes one person per section. Directories
are walked recursively.

When an extracted name is already taken, --on-conflict decides:
  merge  merge into the stored person (default)
  new    create a new person under a suffixed name like 张三(2)
  skip   leave the stored person untouched

Examples:
  circles import notes/
  circles import friends.md --on-conflict new
  circles import notes/ --no-wait`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importOnConflict, "on-conflict", string(reconcile.PolicyMerge), "merge, new or skip")
	importCmd.Flags().StringVar(&importName, "name", "", "job name (default: first path)")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 0, "parallel extractions (default: server setting)")
	importCmd.Flags().BoolVar(&importNoWait, "no-wait", false, "start the job and return immediately")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "list the person texts without importing")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	policy, err := reconcile.ParsePolicy(importOnConflict)
	if err != nil {
		return err
	}

	files, err := collectImportFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no person texts found in %s", strings.Join(args, ", "))
	}

	if importDryRun {
		for _, f := range files {
			fmt.Fprintf(stdout, "%s\t%d chars\n", f.Path, len([]rune(f.Content)))
		}
		return nil
	}

	name := importName
	if name == "" {
		name = filepath.Base(args[0])
	}
	job, err := apiClient.Import(ctx, files, service.ImportOptions{
		Name:        name,
		OnConflict:  policy,
		Concurrency: importConcurrency,
	})
	if err != nil {
		return fmt.Errorf("start import: %w", err)
	}
	logger.Info("import started", "job_id", job.ID, "texts", len(files))

	if importNoWait {
		fmt.Fprintf(stdout, "Started job %s (%d notes)\n", job.ID, len(files))
		return nil
	}
	if isTerminal(os.Stdout) {
		return RunJobProgress(apiClient, job)
	}
	return waitForJob(ctx, apiClient, job, stdout)
}

// collectImportFiles reads every note under paths and splits it into
// person texts. Each person text becomes one import file.
func collectImportFiles(paths []string) ([]service.ImportFile, error) {
	var files []service.ImportFile
	add := func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		texts, err := parser.PersonTexts(path, string(data))
		if err != nil {
			return err
		}
		for _, t := range texts {
			files = append(files, service.ImportFile{Path: t.Ref, Content: t.Text})
		}
		return nil
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(root); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isNoteFile(path) {
				return add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isNoteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}
