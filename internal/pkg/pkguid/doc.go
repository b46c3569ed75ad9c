// Package pkguid provides helpers for generating unique identifiers.
//
// Upload sessions and correlation ids use UUIDv7 strings; sample runs use
// Snowflake ids so they sort by creation time.
package pkguid
