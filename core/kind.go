package core

import "context"

// ExecutionKind classifies the pool a unit of work is currently running on.
//
// Kinds are declared on pools when they are built and on producers by tagging
// their context. They are never derived from goroutine identity.
type ExecutionKind string

const (
	KindCPULight     ExecutionKind = "cpu-light"
	KindIO           ExecutionKind = "io"
	KindCPUIntensive ExecutionKind = "cpu-intensive"
	KindCustom       ExecutionKind = "custom"

	// KindUnknown is reported for contexts nobody tagged.
	KindUnknown ExecutionKind = "unknown"
)

func (k ExecutionKind) String() string {
	if k == "" {
		return string(KindUnknown)
	}
	return string(k)
}

type executionKindKeyType struct{}

var executionKindKey executionKindKeyType

// WithExecutionKind tags ctx as running on a context of the given kind.
func WithExecutionKind(ctx context.Context, kind ExecutionKind) context.Context {
	return context.WithValue(ctx, executionKindKey, kind)
}

// ExecutionKindFrom returns the kind ctx was tagged with, or KindUnknown.
func ExecutionKindFrom(ctx context.Context) ExecutionKind {
	if ctx == nil {
		return KindUnknown
	}
	if k, ok := ctx.Value(executionKindKey).(ExecutionKind); ok && k != "" {
		return k
	}
	return KindUnknown
}
