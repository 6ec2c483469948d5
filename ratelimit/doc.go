// Package ratelimit enforces per-requestor execution quotas.
//
// Each requestor gets a fixed sliding window record {window start, count}
// in the persistent store. Checking is also reserving: the read-modify-write
// happens under an optimistic compare-and-swap so that concurrent
// submissions from one requestor, possibly from multiple process
// instances sharing the store, can never both consume the last slot.
// Store failures reject rather than allow.
package ratelimit
