package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect import jobs",
	Long: `List all import jobs or inspect a specific job by ID.

Jobs live in server memory and are gone after a restart.

Examples:
  circles jobs           # List all jobs
  circles jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(stdout, "No jobs found")
		return nil
	}

	fmt.Fprintf(stdout, "%-10s %-20s %-12s %-10s %s\n", "ID", "NAME", "STATUS", "PROGRESS", "STARTED")
	fmt.Fprintln(stdout, "----------------------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress, job.Total)
		}
		started := job.StartedAt.Format("15:04:05")
		fmt.Fprintf(stdout, "%-10s %-20s %-12s %-10s %s\n", job.ID, job.Name, job.Status, progress, started)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Fprintf(stdout, "Job: %s\n", job.ID)
	fmt.Fprintf(stdout, "  Name: %s\n", job.Name)
	fmt.Fprintf(stdout, "  Status: %s\n", job.Status)
	if job.Total > 0 {
		fmt.Fprintf(stdout, "  Progress: %d/%d\n", job.Progress, job.Total)
	}
	fmt.Fprintf(stdout, "  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(stdout, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(stdout, "  Duration: %s\n", job.CompletedAt.Sub(job.StartedAt).Round(time.Second))
	}

	if job.Error != nil && *job.Error != "" {
		fmt.Fprintf(stdout, "  Error: %s\n", *job.Error)
	}

	if job.Result != nil {
		fmt.Fprintln(stdout, "\nResult:")
		fmt.Fprintf(stdout, "  Notes processed: %d\n", job.Result.FilesProcessed)
		fmt.Fprintf(stdout, "  Created: %d\n", job.Result.Created)
		fmt.Fprintf(stdout, "  Merged: %d\n", job.Result.Merged)
		fmt.Fprintf(stdout, "  Skipped: %d\n", job.Result.Skipped)
		if len(job.Result.Errors) > 0 {
			fmt.Fprintf(stdout, "\n  Errors (%d):\n", len(job.Result.Errors))
			for _, e := range job.Result.Errors {
				fmt.Fprintf(stdout, "    - %s\n", e)
			}
		}
	}

	return nil
}
