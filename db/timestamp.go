package db

import (
	"fmt"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// NullTimestamp scans nullable timestamps from postgres (time.Time) and from
// sqlite, which hands back text when it cannot see the declared column type.
type NullTimestamp struct {
	Time  time.Time
	Valid bool
}

func (n *NullTimestamp) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*n = NullTimestamp{}
		return nil
	case time.Time:
		*n = NullTimestamp{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into NullTimestamp", value)
	}
}

func (n *NullTimestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*n = NullTimestamp{Time: t.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// Ptr returns nil for NULL
func (n NullTimestamp) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
