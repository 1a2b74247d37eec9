// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay, jitter, and maximum delay. Errors wrapped
// with [Fatal] abort the loop immediately. It backs the LLM gateway's
// rate-limit handling and other calls that may fail transiently.
package retry
