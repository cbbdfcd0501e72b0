// Package sysstats samples host CPU and memory usage for the dashboard.
package sysstats

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerGB = 1024 * 1024 * 1024

// Stats is one host usage sample.
type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedGB  float64 `json:"memory_used"`
	MemoryTotalGB float64 `json:"memory_total"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Sampler reads host usage. The zero value is not usable; call NewSampler.
type Sampler struct {
	cpuPercent    func(ctx context.Context) (float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewSampler returns a Sampler backed by gopsutil.
//
// CPU usage is measured since the previous call rather than over a blocking
// interval, so the first sample after start may read 0.
func NewSampler() *Sampler {
	return &Sampler{
		cpuPercent: func(ctx context.Context) (float64, error) {
			percents, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				return 0, err
			}
			if len(percents) == 0 {
				return 0, nil
			}
			return percents[0], nil
		},
		virtualMemory: mem.VirtualMemoryWithContext,
	}
}

// Sample reads the current CPU and memory usage.
func (s *Sampler) Sample(ctx context.Context) (Stats, error) {
	cpuPct, err := s.cpuPercent(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("sample cpu: %w", err)
	}
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("sample memory: %w", err)
	}
	return Stats{
		CPUPercent:    round2(cpuPct),
		MemoryUsedGB:  round2(float64(vm.Used) / bytesPerGB),
		MemoryTotalGB: round2(float64(vm.Total) / bytesPerGB),
		MemoryPercent: round2(vm.UsedPercent),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
