package core

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

const traceIDPrefix = "evt"

// NewTraceID returns an ID for correlating the log lines of one processed event.
// The ULID timestamp is taken from the event itself so IDs sort by message time.
// Example: NewTraceID(ts) returns "evt_01G0EZ1XTM37C5X11SQTDNCTM1"
func NewTraceID(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	id := ulid.MustNew(ulid.Timestamp(at), rand.Reader)
	return traceIDPrefix + "_" + id.String()
}
