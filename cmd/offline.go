package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shandysiswandi/gosampling/internal/sampling/delimiter"
	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
	"github.com/shandysiswandi/gosampling/internal/sampling/progress"
	"github.com/shandysiswandi/gosampling/internal/sampling/rows"
	"github.com/shandysiswandi/gosampling/internal/sampling/sampler"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Count lines and report blank lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var cleanCmd = &cobra.Command{
	Use:   "clean FILE",
	Short: "Write FILE without blank lines to <stem>_clean<ext>",
	Args:  cobra.ExactArgs(1),
	RunE:  runClean,
}

var indexCmd = &cobra.Command{
	Use:   "index FILE",
	Short: "Build or reuse the offset index of FILE",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var sampleCmd = &cobra.Command{
	Use:   "sample FILE",
	Short: "Draw a seeded sample through the offset index",
	Args:  cobra.ExactArgs(1),
	RunE:  runSample,
}

var reservoirCmd = &cobra.Command{
	Use:   "reservoir FILE",
	Short: "Draw a seeded sample in one pass without an index",
	Args:  cobra.ExactArgs(1),
	RunE:  runReservoir,
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, cleanCmd, sampleCmd, reservoirCmd} {
		c.Flags().StringP("delimiter", "d", "", "delimiter: pipe, semicolon, comma, tab or the literal character (detected when empty)")
	}
	for _, c := range []*cobra.Command{cleanCmd, indexCmd, sampleCmd, reservoirCmd} {
		c.Flags().Bool("headers", false, "treat the first line as a header")
	}

	cleanCmd.Flags().StringP("output", "o", "", "output path (default <stem>_clean<ext>)")

	sampleCmd.Flags().Int64("n", 0, "sample size")
	sampleCmd.Flags().Uint64("seed", 0, "random seed")
	sampleCmd.Flags().Int64("start", 1, "first line of the range (1-based)")
	sampleCmd.Flags().Int64("end", 0, "last line of the range (default: last usable line)")
	sampleCmd.Flags().Bool("duplicates", false, "draw with replacement")
	sampleCmd.Flags().Bool("ordered", false, "return rows in line order")
	_ = sampleCmd.MarkFlagRequired("n")

	reservoirCmd.Flags().Int64("n", 0, "sample size")
	reservoirCmd.Flags().Uint64("seed", 0, "random seed")
	_ = reservoirCmd.MarkFlagRequired("n")
}

func delimiterFlag(cmd *cobra.Command) (rune, error) {
	raw, _ := cmd.Flags().GetString("delimiter")
	if raw == "" {
		return 0, nil
	}
	return delimiter.Parse(raw)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	sep, err := delimiterFlag(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	report, err := rows.Validate(ctx, args[0], rows.Options{Delimiter: sep})
	if err != nil {
		return err
	}

	return printJSON(cmd, toValidationOutput(report))
}

func runClean(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	sep, err := delimiterFlag(cmd)
	if err != nil {
		return err
	}
	headers, _ := cmd.Flags().GetBool("headers")
	output, _ := cmd.Flags().GetString("output")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := rows.Clean(ctx, args[0], rows.CleanOptions{Delimiter: sep, UseHeaders: headers, Output: output})
	if err != nil {
		return err
	}

	return printJSON(cmd, cleanOutput{
		Source:        res.Source,
		Output:        res.Output,
		LinesWritten:  res.LinesWritten,
		DataLines:     res.DataLines,
		HeaderWritten: res.HeaderWritten,
	})
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	headers, _ := cmd.Flags().GetBool("headers")

	coord, err := progress.New(cfg.GetString("storage.progress_dir"), cfg.GetDuration("index.progress_grace"))
	if err != nil {
		return err
	}
	defer coord.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	source := args[0]
	name := filepath.Base(source)
	opts := offsetindex.BuildOptions{
		UseHeaders:    headers,
		BatchSize:     int(cfg.GetInt("index.batch_size")),
		ReadBuffer:    int(cfg.GetInt("index.read_buffer")),
		ProgressEvery: cfg.GetInt("index.progress_every_bytes"),
		OnProgress: func(p offsetindex.Progress) {
			slog.InfoContext(ctx, "indexing", "file", name, "percent", fmt.Sprintf("%.1f", p.Percent), "lines", p.Lines)
			if err := coord.Report(name, entity.ProgressSnapshot{
				Percent:        p.Percent,
				LinesProcessed: p.Lines,
				BytesProcessed: p.BytesProcessed,
				TotalBytes:     p.TotalBytes,
			}); err != nil {
				slog.WarnContext(ctx, "failed to write progress snapshot", "file", name, "error", err)
			}
		},
	}

	var res entity.IndexResult
	err = coord.Run(source, func() error {
		coord.Begin(name)

		var buildErr error
		res, buildErr = offsetindex.Build(ctx, source, opts)
		if buildErr != nil {
			_ = coord.Fail(name, entity.ProgressSnapshot{}, buildErr)
			return buildErr
		}
		return coord.Complete(name, entity.ProgressSnapshot{LinesProcessed: res.Lines, TotalLines: res.Lines})
	})
	if err != nil {
		return err
	}

	return printJSON(cmd, indexOutput{
		Lines:           res.Lines,
		UsableLines:     res.UsableLines,
		DataRows:        res.DataRows,
		DataStartOffset: res.DataStartOffset,
		Reused:          res.Reused,
		IndexPath:       res.IndexPath,
	})
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sep, err := delimiterFlag(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	n, _ := flags.GetInt64("n")
	seed, _ := flags.GetUint64("seed")
	start, _ := flags.GetInt64("start")
	end, _ := flags.GetInt64("end")
	headers, _ := flags.GetBool("headers")
	duplicates, _ := flags.GetBool("duplicates")
	ordered, _ := flags.GetBool("ordered")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := sampler.SampleFile(ctx, args[0], sampler.Options{
		N:               n,
		Seed:            seed,
		Start:           start,
		End:             end,
		UseHeaders:      headers,
		AllowDuplicates: duplicates,
		Ordered:         ordered,
		Delimiter:       sep,
		Concurrency:     int(cfg.GetInt("sampler.read_concurrency")),
		MaxN:            cfg.GetInt("sampler.max_n"),
	})
	if errors.Is(err, offsetindex.ErrIndexMissing) || errors.Is(err, offsetindex.ErrIndexStale) {
		return fmt.Errorf("%w: run `gosampling index %s` first", err, args[0])
	}
	if err != nil {
		return err
	}

	return printJSON(cmd, toSampleOutput(res, headers))
}

func runReservoir(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sep, err := delimiterFlag(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	n, _ := flags.GetInt64("n")
	seed, _ := flags.GetUint64("seed")
	headers, _ := flags.GetBool("headers")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := sampler.Reservoir(ctx, f, sampler.ReservoirOptions{
		N:          n,
		Seed:       seed,
		UseHeaders: headers,
		MaxN:       cfg.GetInt("sampler.max_n"),
		Delimiter:  sep,
	})
	if err != nil {
		return err
	}

	out := toSampleOutput(res, false)
	out.DataRows = res.UsableLines
	return printJSON(cmd, out)
}
