package progress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/batchlog/internal/parallel"
)

// Scope ties an Indicator to the parallel facility: while it is open every
// batch completed by any Runner advances the indicator by the batch size.
type Scope struct {
	indicator Indicator
	release   func()

	closeOnce sync.Once
	closeErr  error
}

// Enter opens a Scope around ind. Callers must Close it.
func Enter(ind Indicator) *Scope {
	s := &Scope{indicator: ind}
	s.release = parallel.Observe(func(b parallel.Batch) {
		ind.Update(b.Size)
	})
	return s
}

// Indicator returns the indicator the scope advances.
func (s *Scope) Indicator() Indicator {
	return s.indicator
}

// Fail forwards err to the indicator if it renders failures.
func (s *Scope) Fail(err error) {
	if f, ok := s.indicator.(Failer); ok && err != nil {
		f.Fail(err)
	}
}

// Close stops observing batches and then closes the indicator. Only the first
// call does any work; later calls return its result.
func (s *Scope) Close() error {
	s.closeOnce.Do(func() {
		s.release()
		s.closeErr = s.indicator.Close()
	})
	return s.closeErr
}

// Report runs fn with ind attached to every batch completed meanwhile. The
// indicator is detached and closed however fn exits. A panic in fn is
// re-raised after cleanup. An error from fn is returned as is unless closing
// the indicator also fails, in which case both are joined.
func Report(ind Indicator, fn func(Indicator) error) (err error) {
	s := Enter(ind)
	defer func() {
		if rec := recover(); rec != nil {
			s.Fail(fmt.Errorf("panic: %v", rec))
			_ = s.Close()
			panic(rec)
		}
		if err != nil {
			s.Fail(err)
		}
		if closeErr := s.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			} else {
				err = errors.Join(err, closeErr)
			}
		}
	}()
	return fn(s.Indicator())
}
