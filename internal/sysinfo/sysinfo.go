// Package sysinfo reports resource usage of the coordinator process.
package sysinfo

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type Usage struct {
	PID        int32
	CPU        float64
	RAM        uint64
	Goroutines int
	StartedAt  time.Time
}

type Probe struct {
	proc      *process.Process
	startedAt time.Time
}

func NewProbe() (*Probe, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	started := time.Now()
	if ms, err := p.CreateTime(); err == nil {
		started = time.UnixMilli(ms)
	}
	return &Probe{proc: p, startedAt: started}, nil
}

// Sample never fails; fields gopsutil cannot read stay zero.
func (p *Probe) Sample() Usage {
	u := Usage{
		PID:        p.proc.Pid,
		Goroutines: runtime.NumGoroutine(),
		StartedAt:  p.startedAt,
	}
	if cpu, err := p.proc.CPUPercent(); err == nil {
		u.CPU = cpu
	}
	if mem, err := p.proc.MemoryInfo(); err == nil && mem != nil {
		u.RAM = mem.RSS
	}
	return u
}
