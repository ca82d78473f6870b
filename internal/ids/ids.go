// Package ids generates identifiers for stored records.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
// Ids created later sort after ids created earlier.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Valid reports whether s has the shape of an id returned by New, or of a
// hex ObjectId carried over from records created before ULIDs.
func Valid(s string) bool {
	if _, err := ulid.ParseStrict(s); err == nil {
		return true
	}
	return primitive.IsValidObjectID(s)
}
