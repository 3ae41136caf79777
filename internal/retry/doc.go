// Package retry runs remote calls with exponential backoff.
//
// Do is generic over the wrapped operation and knows nothing about what the
// operation does. Errors are classified by IsRetryable: rate limiting (429),
// request timeouts (408), server errors (5xx), timeouts and network failures
// are retried; everything else, including errors tagged with a permanent
// services marker, is returned after a single attempt. When retries are
// exhausted the last error is returned unchanged.
package retry
