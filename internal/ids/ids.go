// Package ids generates opaque, time-ordered identifiers.
package ids

import "github.com/google/uuid"

// New returns a UUIDv7 string. Ids from one process sort lexically in
// creation order.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
