// Package cli provides the command-line interface for circles.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/raphaelgruber/circles/internal/app"
	"github.com/raphaelgruber/circles/internal/client"
	"github.com/raphaelgruber/circles/internal/config"
	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Shared state, set up before every command
	cfg         config.Config
	apiClient   *client.Client
	store       *app.Store
	logger      *slog.Logger
	closeLogger func() error
)

// Terminal I/O, swapped out in tests.
var (
	stdin  *bufio.Reader = bufio.NewReader(os.Stdin)
	stdout io.Writer     = os.Stdout
	stderr io.Writer     = os.Stderr
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "circles",
	Short: "Personal relationship manager",
	Long: `Circles keeps track of the people you know.

Describe someone in free text and circles extracts a profile, checks
whether you already know them, shows what changed and saves the result
once you confirm. All commands talk to a running circles-server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		cfg.LogLevel = slog.LevelWarn
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLogger = config.SetupComponentLogger(cfg, "cli")

		url := cfg.ServerURL
		if serverURL != "" {
			url = serverURL
		}
		apiClient = client.New(url, cfg.ClientTimeout)
		store = app.NewStore(apiClient, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $CIRCLES_SERVER_URL)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(circleCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(statsCmd)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ask prints a prompt and reads one trimmed line. def is returned for an
// empty answer.
func ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(stdout, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(stdout, "%s: ", prompt)
	}
	line, err := stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// confirm asks a yes/no question defaulting to no.
func confirm(prompt string) (bool, error) {
	answer, err := ask(prompt+" [y/N]", "")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// findPerson resolves a numeric id or an exact name against the
// known-persons list.
func findPerson(ref string) (*models.Person, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if p := store.Person(id); p != nil {
			return p, nil
		}
	}
	if p := reconcile.Resolve(ref, store.Persons()); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("person not found: %s", ref)
}
