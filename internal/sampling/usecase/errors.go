package usecase

import (
	"errors"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosampling/internal/sampling/chunk"
	"github.com/shandysiswandi/gosampling/internal/sampling/delimiter"
	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
	"github.com/shandysiswandi/gosampling/internal/sampling/progress"
	"github.com/shandysiswandi/gosampling/internal/sampling/sampler"
)

// mapErr turns component errors into pkgerror values the router can render.
func mapErr(err error) error {
	var (
		perr     *pkgerror.Error
		rangeErr *sampler.RangeError
		sizeErr  *sampler.SampleSizeError
	)

	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, chunk.ErrOutOfOrder):
		return pkgerror.NewTooEarly(err)
	case errors.Is(err, chunk.ErrAlreadyAssembled):
		return pkgerror.NewConflict(err)
	case errors.Is(err, chunk.ErrInvalidChunk),
		errors.Is(err, delimiter.ErrUnknown),
		errors.As(err, &rangeErr),
		errors.As(err, &sizeErr):
		return pkgerror.NewInvalidInput(err)
	case errors.Is(err, progress.ErrBuildInProgress):
		return pkgerror.NewBusy(err)
	case errors.Is(err, progress.ErrNoSnapshot):
		return pkgerror.NewNotFound("no index build recorded for file")
	case errors.Is(err, offsetindex.ErrIndexMissing):
		return pkgerror.NewNotFound("file has not been indexed")
	case errors.Is(err, offsetindex.ErrIndexStale):
		return pkgerror.NewConflict(err)
	case errors.Is(err, pkgerror.ErrNotFound):
		return pkgerror.NewNotFound("file not found")
	}

	return normalizeErr(err)
}
