package core

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID            string
	Kind          ExecutionKind
	Workers       int
	Queued        int
	Active        int
	Rejected      int64
	QueueCapacity int
	Running       bool
}
