package system

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// ExecutionRecord holds the start and end times of one Process call.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// probeModule registers a "probe" processor that sleeps and records when each
// instance ran.
type probeModule struct {
	sleep time.Duration

	mu      sync.Mutex
	records map[string][]ExecutionRecord

	active    atomic.Int32
	maxActive atomic.Int32
}

func newProbeModule(sleep time.Duration) *probeModule {
	return &probeModule{sleep: sleep, records: make(map[string][]ExecutionRecord)}
}

type probeParams struct{}

type probe struct {
	name string
	m    *probeModule
}

func (p *probe) Name() string    { return p.name }
func (p *probe) Latency() uint32 { return 0 }

func (p *probe) Process(processing.Request) {
	n := p.m.active.Add(1)
	for {
		cur := p.m.maxActive.Load()
		if n <= cur || p.m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	start := time.Now()
	time.Sleep(p.m.sleep)
	end := time.Now()
	p.m.active.Add(-1)

	p.m.mu.Lock()
	p.m.records[p.name] = append(p.m.records[p.name], ExecutionRecord{Start: start, End: end})
	p.m.mu.Unlock()
}

func (m *probeModule) Register(r *registry.Registry) {
	r.RegisterProcessor("probe", &registry.RegisteredProcessor{
		NewParams: func() any { return &probeParams{} },
		New: func(_ context.Context, args registry.Args) (processing.Processable, error) {
			return &probe{name: args.Name, m: m}, nil
		},
		MaxInputs: -1,
	})
}

func (m *probeModule) recordsOf(name string) []ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutionRecord(nil), m.records[name]...)
}
