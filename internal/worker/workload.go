package worker

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Options sizes the workload.
type Options struct {
	// PrimeLimit is the exclusive upper bound of the sieve.
	PrimeLimit int
	// ProgressEvery is the number of candidates between progress lines.
	ProgressEvery int
}

// Run executes the CPU-bound payload: a prime sieve up to PrimeLimit,
// emitting human-readable progress lines to w. It runs to completion and is
// never preempted; the parent process only observes the stream and the exit
// code.
func Run(w io.Writer, opts Options) error {
	if opts.PrimeLimit < 2 {
		return errors.New("prime limit must be at least 2")
	}
	if opts.ProgressEvery < 1 {
		return errors.New("progress interval must be at least 1")
	}

	start := time.Now()
	composite := make([]bool, opts.PrimeLimit)
	primes := 0
	for candidate := 2; candidate < opts.PrimeLimit; candidate++ {
		if !composite[candidate] {
			primes++
			for multiple := candidate * 2; multiple < opts.PrimeLimit; multiple += candidate {
				composite[multiple] = true
			}
		}
		if candidate%opts.ProgressEvery == 0 {
			if _, err := fmt.Fprintf(w, "progress checked=%d/%d primes=%d\n", candidate, opts.PrimeLimit, primes); err != nil {
				return fmt.Errorf("write progress: %w", err)
			}
		}
	}

	if _, err := fmt.Fprintf(w, "done primes=%d limit=%d elapsed=%s\n", primes, opts.PrimeLimit, time.Since(start).Round(time.Millisecond)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
