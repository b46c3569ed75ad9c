// Package pkgroutine contains helpers for running goroutines safely.
//
// The Manager type limits concurrency, collects returned errors and panics,
// and offers a non-blocking TryGo for callers that must answer immediately
// instead of queueing.
package pkgroutine
