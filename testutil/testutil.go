package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates num vectors of the given dimension with
// components in [0, 1).
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dimensions)
		r.FillUniform(vectors[i])
	}
	return vectors
}

// Zipf returns a skewed index in [0, n). Small indexes are drawn far more
// often than large ones for s > 1.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}
	if s <= 1 {
		return r.rand.Intn(n)
	}
	z := rand.NewZipf(r.rand, s, 1, uint64(n-1))
	return int(z.Uint64())
}

// Op is one staged operation of a generated workload.
type Op struct {
	Delete bool
	ID     string
	TS     int64
	Vector []float32 // nil for deletes
}

// WorkloadConfig shapes a generated workload.
type WorkloadConfig struct {
	Ops        int     // number of operations
	IDs        int     // size of the id space
	MaxTS      int64   // timestamps are drawn from [1, MaxTS]
	NegativeTS bool    // draw timestamps from [-MaxTS, MaxTS] instead
	Dim        int     // vector dimension
	DeleteP    float64 // probability that an op is a delete
	ZipfSkew   float64 // id skew; values <= 1 draw ids uniformly
	IDPattern  string  // fmt pattern applied to the id index, default "id-%04d"
}

// Workload generates a reproducible sequence of pushes. Skewed ids make the
// same id receive several inserts and deletes, which exercises replacement
// and conflict resolution.
func (r *RNG) Workload(cfg WorkloadConfig) []Op {
	pattern := cfg.IDPattern
	if pattern == "" {
		pattern = "id-%04d"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]Op, cfg.Ops)
	for i := range ops {
		op := Op{
			ID: fmt.Sprintf(pattern, r.zipfLocked(cfg.IDs, cfg.ZipfSkew)),
			TS: 1 + r.rand.Int63n(cfg.MaxTS),
		}
		if cfg.NegativeTS {
			op.TS = r.rand.Int63n(2*cfg.MaxTS+1) - cfg.MaxTS
		}
		if r.rand.Float64() < cfg.DeleteP {
			op.Delete = true
		} else {
			op.Vector = make([]float32, cfg.Dim)
			for j := range op.Vector {
				op.Vector[j] = r.rand.Float32()
			}
		}
		ops[i] = op
	}
	return ops
}

// Pending is the pending state of one id: the last staged insert and the
// last staged delete. Later pushes replace earlier ones of the same kind.
type Pending struct {
	Insert *Op
	Delete *Op
}

// Model is a reference implementation of the staging queue used as a test
// oracle.
type Model struct {
	ids map[string]*Pending
}

// NewModel replays ops into a fresh model.
func NewModel(ops []Op) *Model {
	m := &Model{ids: make(map[string]*Pending)}
	for i := range ops {
		m.Apply(ops[i])
	}
	return m
}

// Apply stages one operation.
func (m *Model) Apply(op Op) {
	p := m.ids[op.ID]
	if p == nil {
		p = &Pending{}
		m.ids[op.ID] = p
	}
	if op.Delete {
		p.Delete = &op
	} else {
		p.Insert = &op
	}
}

// Len returns the number of pending inserts and deletes.
func (m *Model) Len() (inserts, deletes int) {
	for _, p := range m.ids {
		if p.Insert != nil {
			inserts++
		}
		if p.Delete != nil {
			deletes++
		}
	}
	return inserts, deletes
}

// Live returns the pending inserts newer than their pending delete, sorted by
// id. A missing delete counts as timestamp 0.
func (m *Model) Live() []Op {
	var live []Op
	for _, p := range m.ids {
		if p.Insert == nil {
			continue
		}
		var deleteTS int64
		if p.Delete != nil {
			deleteTS = p.Delete.TS
		}
		if p.Insert.TS <= deleteTS {
			continue
		}
		live = append(live, *p.Insert)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live
}

// Drain removes every entry timestamped at or before now and returns one
// outcome per id: the newer of its due insert and due delete, a delete
// winning ties. Entries after now, including a not yet due partner of a
// drained entry, stay pending.
func (m *Model) Drain(now int64) map[string]Op {
	out := make(map[string]Op)
	for id, p := range m.ids {
		ins := p.Insert
		if ins != nil && ins.TS > now {
			ins = nil
		}
		del := p.Delete
		if del != nil && del.TS > now {
			del = nil
		}

		switch {
		case ins != nil && (del == nil || ins.TS > del.TS):
			out[id] = *ins
		case del != nil:
			out[id] = *del
		default:
			continue
		}

		if ins != nil {
			p.Insert = nil
		}
		if del != nil {
			p.Delete = nil
		}
		if p.Insert == nil && p.Delete == nil {
			delete(m.ids, id)
		}
	}
	return out
}

// MaxAbsDiff returns the largest component difference of two vectors, or
// +Inf when their lengths differ.
func MaxAbsDiff(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var d float64
	for i := range a {
		d = math.Max(d, math.Abs(float64(a[i]-b[i])))
	}
	return d
}
