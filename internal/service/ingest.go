package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/models"
)

const defaultConcurrency = 4

// mediaKinds maps file extensions to the media kind they are ingested as.
var mediaKinds = map[string]models.ContentType{
	".jpg":  models.ContentPhoto,
	".jpeg": models.ContentPhoto,
	".png":  models.ContentPhoto,
	".gif":  models.ContentPhoto,
	".webp": models.ContentPhoto,
	".pdf":  models.ContentDocument,
	".ogg":  models.ContentVoice,
	".oga":  models.ContentVoice,
	".mp3":  models.ContentVoice,
	".m4a":  models.ContentVoice,
}

var textExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// IngestService feeds files from disk through the capture pipeline.
type IngestService struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewIngestService creates an ingest service.
func NewIngestService(p *Pipeline, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{pipeline: p, logger: logger}
}

// IngestOptions configures file ingestion.
type IngestOptions struct {
	// Source labels the created notes; empty uses the configured source.
	Source string
	// Subfolder below the incoming folder.
	Subfolder string
	// Recursive processes subdirectories
	Recursive bool
	// Concurrency sets number of parallel workers (default 4)
	Concurrency int
	// Job for progress reporting (optional, set by async ingestion)
	Job *Job
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	FilesProcessed int      `json:"files_processed"`
	NotesCreated   int      `json:"notes_created"`
	Notes          []string `json:"notes,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// MediaKind returns the attachment kind for path's extension.
func MediaKind(path string) (models.ContentType, bool) {
	kind, ok := mediaKinds[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// Supported reports whether path has an extension the service can ingest.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, media := mediaKinds[ext]
	return media || textExts[ext]
}

// CollectFiles walks a directory and returns all ingestible files.
// Hidden files and directories are skipped.
func (s *IngestService) CollectFiles(dirPath string, recursive bool) ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dirPath && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && !recursive && path != dirPath {
			return filepath.SkipDir
		}
		if !d.IsDir() && Supported(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return files, nil
}

// MessageFromFile builds a message from a file on disk: text files become
// text messages, known media types become attachments.
func MessageFromFile(path string, opts IngestOptions) (Message, error) {
	ext := strings.ToLower(filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, fmt.Errorf("read file: %w", err)
	}

	msg := Message{Source: opts.Source, Subfolder: opts.Subfolder}
	if kind, ok := mediaKinds[ext]; ok {
		msg.Media = &Media{Kind: kind, Filename: filepath.Base(path), Data: data}
		return msg, nil
	}
	if !textExts[ext] {
		return Message{}, fmt.Errorf("unsupported file type %q", ext)
	}
	msg.Text = string(data)
	return msg, nil
}

// IngestFile captures a single file.
func (s *IngestService) IngestFile(ctx context.Context, path string, opts IngestOptions) (models.SavedNote, error) {
	msg, err := MessageFromFile(path, opts)
	if err != nil {
		return models.SavedNote{}, err
	}
	return s.pipeline.Capture(ctx, msg)
}

// IngestDirectory ingests all supported files from a directory (synchronous).
func (s *IngestService) IngestDirectory(ctx context.Context, dirPath string, opts IngestOptions) (*IngestResult, error) {
	files, err := s.CollectFiles(dirPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	return s.ProcessFiles(ctx, nil, files, opts)
}

// ProcessFiles captures files with a bounded worker pool. Per-file failures
// are collected in the result; a fatal backend error (auth, quota) stops
// the run and is returned alongside the partial result.
func (s *IngestService) ProcessFiles(ctx context.Context, jobs *JobManager, files []string, opts IngestOptions) (*IngestResult, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	s.logger.Info("starting file processing", "files", len(files), "concurrency", concurrency)

	var (
		filesProcessed atomic.Int32
		mu             sync.Mutex
		result         = &IngestResult{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, file := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			processed := filesProcessed.Add(1)
			s.logger.Info("processing file", "file", filepath.Base(file), "progress", fmt.Sprintf("%d/%d", processed, len(files)))
			if jobs != nil && opts.Job != nil {
				jobs.UpdateProgress(opts.Job, int(processed), len(files))
			}

			saved, err := s.IngestFile(gctx, file, opts)
			if err != nil {
				if errors.Is(err, llm.ErrFatalAPI) {
					return fmt.Errorf("%s: %w", file, err)
				}
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file, err))
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.NotesCreated++
			result.Notes = append(result.Notes, saved.Path)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	result.FilesProcessed = int(filesProcessed.Load())
	s.logger.Info("file processing complete", "notes", result.NotesCreated, "errors", len(result.Errors))
	if err != nil {
		return result, err
	}
	return result, nil
}

// IngestDirectoryAsync starts a background ingestion job.
func (s *IngestService) IngestDirectoryAsync(jobs *JobManager, dirPath string, opts IngestOptions) (*Job, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory: %s", dirPath)
	}

	files, err := s.CollectFiles(dirPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported files found in %s", dirPath)
	}

	job := jobs.CreateJob("ingest", dirPath, files)
	opts.Job = job
	if opts.Concurrency <= 0 {
		opts.Concurrency = jobs.Concurrency()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				jobs.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		jobs.SetRunning(job)
		result, err := s.ProcessFiles(context.Background(), jobs, files, opts)
		if err != nil {
			jobs.Fail(job, err)
			return
		}
		jobs.Complete(job, result)
	}()

	return job, nil
}
