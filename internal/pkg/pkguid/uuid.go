package pkguid

import "github.com/google/uuid"

// UUID generates RFC 9562 version 7 UUID strings (time ordered).
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string.
func (u *UUID) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsUUID reports whether s is a canonical UUID. Upload ids are used as file
// names, so anything else is rejected before it reaches the filesystem.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
