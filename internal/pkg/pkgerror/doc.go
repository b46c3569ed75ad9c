// Package pkgerror defines shared error types and sentinel errors used across
// the application.
//
// Component packages return their own typed errors; the use-case layer maps
// them onto Error, which carries a message, a type, a code and a retry hint
// that handlers translate into HTTP responses.
package pkgerror
