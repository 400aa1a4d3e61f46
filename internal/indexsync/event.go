package indexsync

import "github.com/google/uuid"

// Op is the mutation kind that produced a sync event.
type Op int

const (
	OpCreated Op = iota
	OpUpdated
	OpDeleted
	OpBulkUpdated
	OpBulkDeleted
)

// String returns the lowercase name of the op.
func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpUpdated:
		return "updated"
	case OpDeleted:
		return "deleted"
	case OpBulkUpdated:
		return "bulk-updated"
	case OpBulkDeleted:
		return "bulk-deleted"
	}
	return "unknown"
}

// Event describes one committed mutation whose indexed representation must
// be refreshed or removed. Events are ephemeral: produced at the end of a
// lifecycle operation and consumed exactly once.
type Event struct {
	ID    string
	Op    Op
	Model string

	// PK identifies the subject for singular operations; PKs for bulk.
	PK  any
	PKs []any

	// Refs carries reference documents captured before a delete, keyed by
	// model name, since the subject can no longer be reloaded afterwards.
	Refs map[string][]Document
	// DeletedRefs maps each deleted primary key (string form) to its
	// captured reference documents for bulk deletes.
	DeletedRefs map[string]map[string][]Document
}

// NewEvent returns an event with a fresh ID.
func NewEvent(op Op, model string) Event {
	return Event{ID: uuid.New().String(), Op: op, Model: model}
}
