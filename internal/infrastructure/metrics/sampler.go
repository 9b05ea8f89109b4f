// Package metrics abstracts system and per-process resource sampling
// behind a single read-only port, so tests can substitute a
// deterministic fake for the real system tables.
package metrics

// ProcessSample is one process's resource usage at sample time.
type ProcessSample struct {
	CPU    float32
	Memory uint64
}

// Snapshot is one sweep of the system sampler: global CPU/memory plus a
// per-PID lookup table.
type Snapshot struct {
	GlobalCPU   float32
	MemoryUsed  uint64
	MemoryTotal uint64
	ByPID       map[int32]ProcessSample
}

// Sampler refreshes system and process tables and produces a Snapshot.
type Sampler interface {
	Sample() (Snapshot, error)
}
