package metrics

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// GopsutilSampler implements Sampler on github.com/shirou/gopsutil/v4,
// which reads the host's CPU, memory, and process tables the same way
// across platforms.
type GopsutilSampler struct{}

// NewGopsutilSampler returns a ready-to-use Sampler.
func NewGopsutilSampler() *GopsutilSampler {
	return &GopsutilSampler{}
}

// Sample refreshes CPU, memory, and process tables and returns one
// snapshot.
func (g *GopsutilSampler) Sample() (Snapshot, error) {
	snap := Snapshot{ByPID: make(map[int32]ProcessSample)}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		return snap, fmt.Errorf("sampling system cpu: %w", err)
	}
	if len(percents) > 0 {
		snap.GlobalCPU = float32(percents[0])
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return snap, fmt.Errorf("sampling system memory: %w", err)
	}
	snap.MemoryUsed = vm.Used
	snap.MemoryTotal = vm.Total

	procs, err := process.Processes()
	if err != nil {
		return snap, fmt.Errorf("listing processes: %w", err)
	}
	for _, p := range procs {
		cpuPct, err := p.CPUPercent()
		if err != nil {
			continue
		}
		memInfo, err := p.MemoryInfo()
		if err != nil || memInfo == nil {
			continue
		}
		snap.ByPID[p.Pid] = ProcessSample{
			CPU:    float32(cpuPct),
			Memory: memInfo.RSS,
		}
	}

	return snap, nil
}
