package sampler

import "fmt"

// RangeError rejects a line range that does not fit the indexed file.
type RangeError struct {
	Start  int64
	End    int64
	Usable int64
}

func (e *RangeError) Error() string {
	switch {
	case e.Start < 1:
		return fmt.Sprintf("range start %d must be at least 1", e.Start)
	case e.End < e.Start:
		return fmt.Sprintf("range end %d is before start %d", e.End, e.Start)
	default:
		return fmt.Sprintf("range end %d exceeds usable lines %d", e.End, e.Usable)
	}
}

// SampleSizeError rejects a sample size the range cannot satisfy or that
// exceeds the configured ceiling.
type SampleSizeError struct {
	N         int64
	Available int64
	Limit     int64
}

func (e *SampleSizeError) Error() string {
	if e.N < 1 {
		return fmt.Sprintf("sample size %d must be at least 1", e.N)
	}
	if e.Limit > 0 && e.N > e.Limit {
		return fmt.Sprintf("sample size %d exceeds the limit of %d rows", e.N, e.Limit)
	}
	return fmt.Sprintf("sample size %d exceeds the %d lines in range without duplicates", e.N, e.Available)
}
