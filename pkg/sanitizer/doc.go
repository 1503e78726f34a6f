// Package sanitizer normalizes user-supplied text before validation and storage.
//
// All functions are idempotent and never fail: input that cannot be normalized
// comes back empty, and the validator then rejects it as missing.
package sanitizer
