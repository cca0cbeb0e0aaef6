// Package uuid generates unique identifiers for things like temporary
// store paths.
package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random UUID as a string
func MustUUID() string {
	return google_uuid.New().String()
}
