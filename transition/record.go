package transition

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-workqueue/core"
)

// ErrIncompleteRecord is returned by Build when either side of the handoff is missing.
var ErrIncompleteRecord = errors.New("transition record incomplete")

// Key identifies an ordered (from, to) kind pair. A→B and B→A are distinct.
type Key struct {
	From core.ExecutionKind
	To   core.ExecutionKind
}

// NewKey returns the key for a handoff from one kind to another.
func NewKey(from, to core.ExecutionKind) Key {
	return Key{From: from, To: to}
}

func (k Key) String() string {
	return k.From.String() + "->" + k.To.String()
}

// Record is one finished handoff.
type Record struct {
	From     core.ExecutionKind
	To       core.ExecutionKind
	Duration time.Duration
}

// Key returns the aggregation bucket of r.
func (r Record) Key() Key {
	return Key{From: r.From, To: r.To}
}

// Builder accumulates one handoff in two phases: From when the item leaves a
// context, To when it resumes in another.
//
// Instants are taken with time.Now, whose monotonic reading is what Sub uses,
// so wall clock steps cannot yield negative durations.
type Builder struct {
	now     func() time.Time
	from    core.ExecutionKind
	to      core.ExecutionKind
	start   time.Time
	stop    time.Time
	hasFrom bool
	hasTo   bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// From records the source kind and the start instant.
func (b *Builder) From(kind core.ExecutionKind) *Builder {
	b.from = kind
	b.start = b.now()
	b.hasFrom = true
	return b
}

// To records the destination kind and the stop instant.
func (b *Builder) To(kind core.ExecutionKind) *Builder {
	b.to = kind
	b.stop = b.now()
	b.hasTo = true
	return b
}

// Build finalizes the record. Both From and To must have been called.
func (b *Builder) Build() (Record, error) {
	switch {
	case !b.hasFrom && !b.hasTo:
		return Record{}, fmt.Errorf("%w: neither source nor destination set", ErrIncompleteRecord)
	case !b.hasFrom:
		return Record{}, fmt.Errorf("%w: source not set (destination %s)", ErrIncompleteRecord, b.to)
	case !b.hasTo:
		return Record{}, fmt.Errorf("%w: destination not set (source %s)", ErrIncompleteRecord, b.from)
	}
	return Record{From: b.from, To: b.to, Duration: b.stop.Sub(b.start)}, nil
}
