package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/sampler"
)

// Sample draws an indexed sample and records the run in the history store.
func (u *Usecase) Sample(ctx context.Context, req entity.SampleRequest) (entity.SampleResult, error) {
	meta, err := u.lookup(ctx, req.File)
	if err != nil {
		return entity.SampleResult{}, mapErr(err)
	}

	delim := req.Delimiter
	if delim == "" {
		delim = meta.Delimiter
	}
	sep, err := parseDelimiter(delim)
	if err != nil {
		return entity.SampleResult{}, err
	}

	start := req.Start
	if start == 0 {
		start = 1
	}

	res, err := sampler.SampleFile(ctx, meta.Path, sampler.Options{
		N:               req.N,
		Seed:            req.Seed,
		Start:           start,
		End:             req.End,
		UseHeaders:      req.UseHeaders,
		AllowDuplicates: req.AllowDuplicates,
		Ordered:         req.Ordered,
		Delimiter:       sep,
		Concurrency:     u.cfg.ReadConcurrency,
		MaxN:            u.cfg.MaxSampleSize,
	})
	if err != nil {
		return entity.SampleResult{}, mapErr(err)
	}

	out := entity.SampleResult{
		File:        meta.Name,
		Rows:        res.Rows,
		Columns:     res.Columns,
		Delimiter:   string(res.Delimiter),
		Start:       res.Start,
		End:         res.End,
		UsableLines: res.UsableLines,
		DataRows:    res.UsableLines,
		Hash:        res.Hash,
		Signature:   res.Signature,
	}
	if req.UseHeaders && out.DataRows > 0 {
		out.DataRows--
	}
	if u.runID != nil {
		out.RunID = u.runID.GenerateString()
	}

	req.File = meta.Name
	req.Start, req.End = res.Start, res.End
	run := entity.SampleRun{
		RunID:     out.RunID,
		File:      meta.Name,
		Request:   req,
		Hash:      out.Hash,
		RowCount:  len(out.Rows),
		CreatedAt: u.clock.Now(),
	}
	if err := u.store.AppendRun(ctx, run); err != nil {
		slog.WarnContext(ctx, "failed to record sample run", "file", meta.Name, "run_id", run.RunID, "error", err)
	}

	slog.InfoContext(ctx, "sample drawn", "file", meta.Name, "run_id", out.RunID, "n", req.N, "seed", req.Seed, "hash", out.Hash)
	return out, nil
}

// Runs lists the recorded samples of a file, newest first.
func (u *Usecase) Runs(ctx context.Context, name string, page, pageSize int) (RunsResult, error) {
	if page < 1 || pageSize < 1 {
		return RunsResult{}, pkgerror.NewInvalidInput(errors.New("invalid pagination"))
	}

	meta, err := u.lookup(ctx, name)
	if err != nil {
		return RunsResult{}, mapErr(err)
	}

	runs, total, err := u.store.ListRuns(ctx, meta.Name, page, pageSize)
	if err != nil {
		return RunsResult{}, mapErr(err)
	}

	return RunsResult{
		File:     meta.Name,
		Runs:     runs,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Reservoir samples a stream in one pass without an index.
func (u *Usecase) Reservoir(ctx context.Context, r io.Reader, in ReservoirInput) (entity.SampleResult, error) {
	sep, err := parseDelimiter(in.Delimiter)
	if err != nil {
		return entity.SampleResult{}, err
	}

	res, err := sampler.Reservoir(ctx, r, sampler.ReservoirOptions{
		N:          in.N,
		Seed:       in.Seed,
		UseHeaders: in.UseHeaders,
		MaxN:       u.cfg.MaxSampleSize,
		Delimiter:  sep,
	})
	if err != nil {
		return entity.SampleResult{}, mapErr(err)
	}

	out := entity.SampleResult{
		Rows:        res.Rows,
		Columns:     res.Columns,
		Delimiter:   string(res.Delimiter),
		Start:       res.Start,
		End:         res.End,
		UsableLines: res.UsableLines,
		DataRows:    res.UsableLines,
		Hash:        res.Hash,
		Signature:   res.Signature,
	}
	if u.runID != nil {
		out.RunID = u.runID.GenerateString()
	}

	return out, nil
}
