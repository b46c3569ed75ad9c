package sampler

import (
	"context"

	"github.com/shandysiswandi/gosampling/internal/sampling/offsetindex"
)

// SampleFile runs Sample over the indexed file at path. The signature in
// the hash comes from the index marker when it still matches the file.
func SampleFile(ctx context.Context, path string, opts Options) (Result, error) {
	r, err := offsetindex.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer r.Close()

	if opts.Signature == "" {
		if m, ok := r.Marker(); ok {
			opts.Signature = m.Signature
		} else if opts.Signature, err = offsetindex.Signature(path); err != nil {
			return Result{}, err
		}
	}

	return Sample(ctx, r, opts)
}
