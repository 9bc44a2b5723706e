// Package httputil provides transport helpers shared by repository clients.
//
// # Retry
//
// [Policy.Do] and [Retry] run an operation with bounded exponential backoff.
// Only failures wrapped with [RetryableError] are retried; everything else
// (404s, checksum mismatches, malformed responses) returns immediately:
//
//	err := httputil.Retry(ctx, 3, 200*time.Millisecond, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// Defaults are 3 attempts with a 1 second initial delay that doubles after
// each failure.
package httputil
