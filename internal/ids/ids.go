// Package ids mints the identifiers used across the auth store: user,
// session, grant, reset token and audit record ids are all ULIDs, so
// rows sort by creation time without a separate sequence column.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a fresh ULID. Ids minted within the same millisecond stay
// monotonic, so audit records written in a burst keep their insert order.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
