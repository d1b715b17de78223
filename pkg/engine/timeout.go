package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout is the run limit used when no WithTimeout option is given.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a run exceeds the engine's timeout.
	ErrTimeout = errors.New("script run timed out")
	// ErrSuperseded is returned when a newer run started before this one finished.
	ErrSuperseded = errors.New("script run superseded by newer request")
)

// runResult is the internal type used to pass run results through channels.
type runResult struct {
	result *Result
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns ErrTimeout if the
// run exceeds timeout. It uses a generation counter to discard stale results
// from previous runs.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan runResult,
	timeout time.Duration,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*Result, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}

		return res.result, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
