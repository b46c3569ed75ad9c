// Package pkgrouter wraps HTTP routing and common middleware used by the API.
//
// It provides a small router abstraction over httprouter plus shared concerns
// like JSON encoding, error mapping, logging, recovery and correlation ID
// propagation. Request bodies are only buffered for logging when they are
// small structured payloads, so binary chunk uploads stream straight through.
package pkgrouter
