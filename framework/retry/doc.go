// Package retry provides exponential backoff retry functionality for transient failures
// and for bounded polling of asynchronous state.
//
// # Basic Usage
//
// Use Do to retry a function until it succeeds or max attempts is reached:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//	    return client.DeleteHashmapMapping(ctx, id)
//	}, retry.WithMaxAttempts(5))
//
// # Bounded Polling
//
// WithMaxElapsed replaces the attempt bound with a time bound. The loop backs off
// exponentially until the function succeeds or the deadline passes, in which case
// the returned error wraps both ErrDeadlineExceeded and the last attempt's error:
//
//	err := retry.Do(ctx, pollDataframes,
//	    retry.WithMaxElapsed(10*time.Minute),
//	    retry.WithInitialDelay(15*time.Second),
//	    retry.WithMaxDelay(time.Minute),
//	)
//
// # Permanent Errors
//
// Mark errors as permanent to stop retrying immediately:
//
//	if vol.Status == "error" {
//	    return retry.Permanent(err) // Won't retry
//	}
//
// # Schedule
//
// Backoff.Delay gives the sleep after each attempt without jitter, which
// is how the dataframe poll reports its next interval:
//
//	b := &retry.Backoff{InitialDelay: 15 * time.Second, MaxDelay: time.Minute, Multiplier: 2}
//	b.Delay(1) // 15s
//	b.Delay(3) // 1m
package retry
