package datamodel

import (
	"fmt"
	"time"
)

// Lifecycle is the soft-delete state of a row.
type Lifecycle int

const (
	Live Lifecycle = iota
	Deleted
)

func (l Lifecycle) String() string {
	switch l {
	case Live:
		return "live"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// StateOf derives the lifecycle from a deleted_at column.
func StateOf(deletedAt *time.Time) Lifecycle {
	if deletedAt == nil {
		return Live
	}
	return Deleted
}

func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lifecycle) UnmarshalText(text []byte) error {
	switch string(text) {
	case "live":
		*l = Live
	case "deleted":
		*l = Deleted
	default:
		return fmt.Errorf("unknown lifecycle %q", text)
	}
	return nil
}
