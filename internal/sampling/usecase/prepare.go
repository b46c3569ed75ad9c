package usecase

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
	"github.com/shandysiswandi/gosampling/internal/sampling/rows"
)

// Validate scans a file for blank lines. delim may be empty for detection.
func (u *Usecase) Validate(ctx context.Context, name, delim string) (entity.ValidationReport, error) {
	meta, err := u.lookup(ctx, name)
	if err != nil {
		return entity.ValidationReport{}, mapErr(err)
	}
	sep, err := parseDelimiter(delim)
	if err != nil {
		return entity.ValidationReport{}, err
	}

	report, err := rows.Validate(ctx, meta.Path, rows.Options{Delimiter: sep})
	if err != nil {
		return entity.ValidationReport{}, mapErr(err)
	}

	u.update(ctx, name, func(m *entity.FileMeta) {
		m.Validation = &report
		m.Delimiter = report.Delimiter
		m.HasHeaders = report.HeaderDetected
		m.Status = entity.FileStatusValidated
	})

	slog.InfoContext(ctx, "file validated", "file", name, "lines", report.TotalLines, "empty_lines", report.EmptyLines)
	return report, nil
}

// Clean writes <stem>_clean<ext> without blank lines and registers it as a file of its own.
func (u *Usecase) Clean(ctx context.Context, name string, headers bool) (entity.CleanResult, error) {
	meta, err := u.lookup(ctx, name)
	if err != nil {
		return entity.CleanResult{}, mapErr(err)
	}

	var sep rune
	if meta.Delimiter != "" {
		sep = []rune(meta.Delimiter)[0]
	}

	res, err := rows.Clean(ctx, meta.Path, rows.CleanOptions{Delimiter: sep, UseHeaders: headers})
	if err != nil {
		return entity.CleanResult{}, mapErr(err)
	}

	cleanName := filepath.Base(res.Output)
	if _, err := u.register(ctx, cleanName, entity.FileStatusCleaned); err != nil {
		return entity.CleanResult{}, normalizeErr(err)
	}
	u.update(ctx, cleanName, func(m *entity.FileMeta) {
		m.Delimiter = meta.Delimiter
		m.HasHeaders = headers
	})
	u.update(ctx, name, func(m *entity.FileMeta) {
		m.CleanName = cleanName
	})

	slog.InfoContext(ctx, "file cleaned", "file", name, "output", cleanName, "lines", res.LinesWritten)
	return res, nil
}

// StartIndex takes the build lock and runs the build in the background.
// Callers poll Progress; a second call while the build runs is rejected.
func (u *Usecase) StartIndex(ctx context.Context, name string, headers bool) (IndexStarted, error) {
	if u.runner == nil || u.progress == nil {
		return IndexStarted{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	meta, err := u.lookup(ctx, name)
	if err != nil {
		return IndexStarted{}, mapErr(err)
	}

	release, err := u.progress.Acquire(meta.Path)
	if err != nil {
		return IndexStarted{}, mapErr(err)
	}

	u.progress.Begin(name)
	u.update(ctx, name, func(m *entity.FileMeta) { m.Status = entity.FileStatusIndexing })
	if err := u.progress.Report(name, entity.ProgressSnapshot{TotalBytes: meta.Size}); err != nil {
		slog.WarnContext(ctx, "failed to write progress snapshot", "file", name, "error", err)
	}

	scheduled := u.runner.TryGo(u.detach(ctx), func(ctx context.Context) error {
		defer release()

		if _, err := u.build(ctx, meta, headers); err != nil {
			slog.ErrorContext(ctx, "index build failed", "file", name, "error", err)
			return err
		}
		return nil
	})
	if !scheduled {
		release()
		u.update(ctx, name, func(m *entity.FileMeta) { m.Status = entity.FileStatusFailed })
		return IndexStarted{}, pkgerror.NewBusy(errors.New("all index workers are busy"))
	}

	return IndexStarted{File: name, Status: entity.FileStatusIndexing}, nil
}

// BuildIndex builds the index in the calling goroutine under the build lock.
func (u *Usecase) BuildIndex(ctx context.Context, name string, headers bool) (entity.IndexResult, error) {
	meta, err := u.lookup(ctx, name)
	if err != nil {
		return entity.IndexResult{}, mapErr(err)
	}

	var res entity.IndexResult
	err = u.progress.Run(meta.Path, func() error {
		u.progress.Begin(name)
		u.update(ctx, name, func(m *entity.FileMeta) { m.Status = entity.FileStatusIndexing })

		var buildErr error
		res, buildErr = u.build(ctx, meta, headers)
		return buildErr
	})
	if err != nil {
		return entity.IndexResult{}, mapErr(err)
	}

	return res, nil
}

// build runs the indexer, mirroring its progress into snapshots and the file status.
func (u *Usecase) build(ctx context.Context, meta entity.FileMeta, headers bool) (entity.IndexResult, error) {
	var last entity.ProgressSnapshot

	opts := u.cfg.Index
	opts.UseHeaders = headers
	opts.OnProgress = func(p offsetindex.Progress) {
		last = entity.ProgressSnapshot{
			Percent:        p.Percent,
			LinesProcessed: p.Lines,
			BytesProcessed: p.BytesProcessed,
			TotalBytes:     p.TotalBytes,
		}
		if err := u.progress.Report(meta.Name, last); err != nil {
			slog.WarnContext(ctx, "failed to write progress snapshot", "file", meta.Name, "error", err)
		}
	}

	res, err := offsetindex.Build(ctx, meta.Path, opts)
	if err != nil {
		if ferr := u.progress.Fail(meta.Name, last, err); ferr != nil {
			slog.WarnContext(ctx, "failed to write progress snapshot", "file", meta.Name, "error", ferr)
		}
		u.update(ctx, meta.Name, func(m *entity.FileMeta) {
			m.Status = entity.FileStatusFailed
			m.Err = err.Error()
		})
		return entity.IndexResult{}, err
	}

	final := entity.ProgressSnapshot{
		LinesProcessed: res.Lines,
		TotalLines:     res.Lines,
		BytesProcessed: meta.Size,
		TotalBytes:     meta.Size,
	}
	if err := u.progress.Complete(meta.Name, final); err != nil {
		slog.WarnContext(ctx, "failed to write progress snapshot", "file", meta.Name, "error", err)
	}

	u.update(ctx, meta.Name, func(m *entity.FileMeta) {
		m.Index = &res
		m.HasHeaders = headers
		m.Status = entity.FileStatusIndexed
		m.Err = ""
	})

	return res, nil
}

// Progress returns the latest snapshot of the build of name.
func (u *Usecase) Progress(ctx context.Context, name string) (entity.ProgressSnapshot, error) {
	if err := checkName(name); err != nil {
		return entity.ProgressSnapshot{}, err
	}

	snap, err := u.progress.Snapshot(name)
	if err != nil {
		return entity.ProgressSnapshot{}, mapErr(err)
	}

	return snap, nil
}

// Prepare takes a freshly assembled file through validation, cleaning when
// blank lines were found, and indexing of the file that will be sampled.
func (u *Usecase) Prepare(ctx context.Context, event entity.FileAssembledEvent) error {
	report, err := u.Validate(ctx, event.FileName, "")
	if err != nil {
		return err
	}

	target := event.FileName
	if report.EmptyLines > 0 {
		cleaned, err := u.Clean(ctx, event.FileName, report.HeaderDetected)
		if err != nil {
			return err
		}
		target = filepath.Base(cleaned.Output)
	}

	res, err := u.BuildIndex(ctx, target, report.HeaderDetected)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "file prepared",
		"event_id", event.EventID,
		"upload_id", event.UploadID,
		"file", event.FileName,
		"indexed", target,
		"data_rows", res.DataRows,
	)
	return nil
}
