package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
	"github.com/redhat/cloudkitty-tests/test/framework/rating"
	"github.com/redhat/cloudkitty-tests/test/framework/retry"
	"github.com/redhat/cloudkitty-tests/test/framework/volume"
)

// Poll defaults used when a Poll field is left zero
const (
	DefaultTimeout         = 1 * time.Minute
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultMultiplier      = 2.0
)

var (
	// ErrTimeout is matched by every TimeoutError
	ErrTimeout = errors.New("timed out waiting for condition")

	// ErrVolumeFailed is returned when a volume lands in the error state
	ErrVolumeFailed = errors.New("volume entered error state")

	errNotReady = errors.New("condition not met yet")
)

// Poll configures a bounded, exponentially backed-off poll
type Poll struct {
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Logger          *slog.Logger
}

func (p Poll) withDefaults() Poll {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = max(DefaultMaxInterval, p.InitialInterval)
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// TimeoutError is returned when a poll runs out of time
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
	Attempts  int
	// LastErr is the last error reported by the condition, if any
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: timed out after %v (%d attempts)", e.Operation, e.Timeout, e.Attempts)
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// Condition reports whether the awaited state is reached. Returned errors are
// logged and retried unless wrapped with Stop.
type Condition func(ctx context.Context) (bool, error)

// Stop marks a condition error as fatal so the poll ends immediately
func Stop(err error) error {
	return retry.Permanent(err)
}

// Until polls cond with exponential backoff until it reports done, fails
// permanently, the context ends or p.Timeout elapses.
func Until(ctx context.Context, operation string, p Poll, cond Condition) error {
	p = p.withDefaults()

	attempts := 0
	var lastCondErr error
	err := retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		done, err := cond(ctx)
		if err != nil {
			if !retry.IsPermanent(err) {
				lastCondErr = err
			}
			return err
		}
		if !done {
			return errNotReady
		}
		return nil
	},
		retry.WithMaxElapsed(p.Timeout),
		retry.WithInitialDelay(p.InitialInterval),
		retry.WithMaxDelay(p.MaxInterval),
		retry.WithMultiplier(p.Multiplier),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attrs := []any{"operation", operation, "attempt", attempt, "next_in", delay.Round(time.Millisecond)}
			if !errors.Is(err, errNotReady) {
				attrs = append(attrs, "error", err)
			}
			p.Logger.Debug("Condition not met, polling again", attrs...)
		}),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, retry.ErrDeadlineExceeded):
		return &TimeoutError{Operation: operation, Timeout: p.Timeout, Attempts: attempts, LastErr: lastCondErr}
	default:
		return err
	}
}

// VolumeGetter reads a volume's current state
type VolumeGetter interface {
	Get(ctx context.Context, id string) (*volume.Volume, error)
}

// ForVolumeAvailable waits until the volume reports "available". The error
// state ends the wait at once.
func ForVolumeAvailable(ctx context.Context, vg VolumeGetter, id string, p Poll) (*volume.Volume, error) {
	var vol *volume.Volume
	err := Until(ctx, "volume "+id+" available", p, func(ctx context.Context) (bool, error) {
		v, err := vg.Get(ctx, id)
		if err != nil {
			if volume.IsNotFound(err) {
				return false, Stop(err)
			}
			return false, err
		}
		vol = v
		switch v.Status {
		case volume.StatusAvailable:
			return true, nil
		case volume.StatusError:
			return false, Stop(fmt.Errorf("%w: %s", ErrVolumeFailed, id))
		}
		return false, nil
	})
	return vol, err
}

// DataframeFetcher fetches rated dataframes
type DataframeFetcher interface {
	GetDataframes(ctx context.Context, q rating.DataframeQuery) (dataframe.Response, error)
}

// ForDataframe polls the storage API until a record for resourceID shows up.
// The last response is returned even on timeout so callers can report it.
func ForDataframe(ctx context.Context, f DataframeFetcher, q rating.DataframeQuery, resourceID string, p Poll) (dataframe.Response, error) {
	var last dataframe.Response
	err := Until(ctx, "dataframe for "+resourceID, p, func(ctx context.Context) (bool, error) {
		resp, err := f.GetDataframes(ctx, q)
		if err != nil {
			return false, err
		}
		last = resp
		_, found := dataframe.Find(dataframe.Normalize(resp), resourceID)
		return found, nil
	})
	return last, err
}

// SeriesChecker reports whether a metric query returns any series
type SeriesChecker interface {
	SeriesPresent(ctx context.Context, query string) (bool, error)
}

// ForMetricSeries waits until query yields at least one series
func ForMetricSeries(ctx context.Context, sc SeriesChecker, query string, p Poll) error {
	return Until(ctx, "metric series "+query, p, func(ctx context.Context) (bool, error) {
		return sc.SeriesPresent(ctx, query)
	})
}
