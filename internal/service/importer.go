package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/raphaelgruber/circles/internal/models"
	"github.com/raphaelgruber/circles/internal/reconcile"
)

// ImportFile is one note submitted for import.
type ImportFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ImportOptions configures a batch import.
type ImportOptions struct {
	Name        string           `json:"name"`
	OnConflict  reconcile.Policy `json:"on_conflict"`
	Concurrency int              `json:"concurrency,omitempty"`
}

// ImportResult summarizes a batch import.
type ImportResult struct {
	FilesProcessed int      `json:"files_processed"`
	Created        int      `json:"created"`
	Merged         int      `json:"merged"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors,omitempty"`
}

// ImportService reconciles batches of notes without user interaction.
type ImportService struct {
	persons *PersonService
	jobs    *JobManager
}

// NewImportService creates a new import service.
func NewImportService(persons *PersonService, jobs *JobManager) *ImportService {
	return &ImportService{persons: persons, jobs: jobs}
}

// Jobs returns the job manager tracking imports.
func (s *ImportService) Jobs() *JobManager {
	return s.jobs
}

// ImportAsync starts a background import job and returns it immediately.
func (s *ImportService) ImportAsync(files []ImportFile, opts ImportOptions) (*Job, error) {
	if len(files) == 0 {
		return nil, invalidf("no files to import")
	}
	if _, err := reconcile.ParsePolicy(string(opts.OnConflict)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	job := s.jobs.CreateJob("import", opts.Name, len(files))
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("import goroutine panicked", "job_id", job.ID, "panic", r)
				s.jobs.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		result, err := s.Import(context.Background(), files, opts, job)
		if err != nil {
			s.jobs.Fail(job, err)
			return
		}
		s.jobs.Complete(job, result)
	}()
	return job.Snapshot(), nil
}

// Import processes files with a worker pool. job may be nil.
func (s *ImportService) Import(ctx context.Context, files []ImportFile, opts ImportOptions, job *Job) (*ImportResult, error) {
	policy, err := reconcile.ParsePolicy(string(opts.OnConflict))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.jobs.Concurrency()
	}

	slog.Info("starting import", "files", len(files), "concurrency", concurrency, "on_conflict", policy)

	var (
		processed atomic.Int32
		created   atomic.Int32
		merged    atomic.Int32
		skipped   atomic.Int32
		errorsMu  sync.Mutex
		errs      []string
	)

	fileChan := make(chan ImportFile, len(files))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for f := range fileChan {
				if ctx.Err() != nil {
					return
				}

				n := processed.Add(1)
				slog.Info("importing file", "worker", workerID, "file", f.Path, "progress", fmt.Sprintf("%d/%d", n, len(files)))
				if job != nil {
					s.jobs.UpdateProgress(job, int(n))
				}

				_, isNew, err := s.reconcileText(ctx, f.Content, policy)
				switch {
				case errors.Is(err, reconcile.ErrSkipped):
					skipped.Add(1)
				case err != nil:
					errorsMu.Lock()
					errs = append(errs, fmt.Sprintf("%s: %v", f.Path, err))
					errorsMu.Unlock()
				case isNew:
					created.Add(1)
				default:
					merged.Add(1)
				}
			}
		}(i)
	}

	for _, f := range files {
		fileChan <- f
	}
	close(fileChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("import complete", "created", created.Load(), "merged", merged.Load(), "skipped", skipped.Load(), "errors", len(errs))

	return &ImportResult{
		FilesProcessed: int(processed.Load()),
		Created:        int(created.Load()),
		Merged:         int(merged.Load()),
		Skipped:        int(skipped.Load()),
		Errors:         errs,
	}, nil
}

// Remember reconciles a single text without user interaction and persists
// the result. It reports whether a new person was created.
func (s *ImportService) Remember(ctx context.Context, text string, policy reconcile.Policy) (*models.ConfirmResponse, bool, error) {
	policy, err := reconcile.ParsePolicy(string(policy))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.reconcileText(ctx, text, policy)
}

// reconcileText plans and confirms one text. Extraction runs unlocked;
// name check, compare and confirm hold the person service's confirm lock,
// so two notes about the same new person cannot race on the unique name.
func (s *ImportService) reconcileText(ctx context.Context, text string, policy reconcile.Policy) (*models.ConfirmResponse, bool, error) {
	extracted, err := s.persons.Extract(ctx, text)
	if err != nil {
		return nil, false, err
	}

	s.persons.confirmMu.Lock()
	defer s.persons.confirmMu.Unlock()

	known, err := s.persons.ListPersons(ctx)
	if err != nil {
		return nil, false, err
	}
	req, err := reconcile.Plan(ctx, text, policy, staticExtraction{extracted}, s.persons, known)
	if err != nil {
		return nil, false, err
	}
	res, err := s.persons.confirmLocked(ctx, *req)
	if err != nil {
		return nil, false, err
	}
	return res, req.IsNewPerson, nil
}

// staticExtraction replays an extraction already obtained.
type staticExtraction struct {
	res *models.ExtractResponse
}

func (e staticExtraction) Extract(ctx context.Context, text string) (*models.ExtractResponse, error) {
	return e.res, nil
}
