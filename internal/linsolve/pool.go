package linsolve

import "sync"

// VectorPool recycles solver scratch vectors, keyed by length.
type VectorPool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

var sharedPool = NewVectorPool()

func NewVectorPool() *VectorPool {
	return &VectorPool{pools: make(map[int]*sync.Pool)}
}

func (p *VectorPool) poolFor(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.pools[size]
	if !ok {
		sp = &sync.Pool{
			New: func() interface{} {
				return make([]float64, size)
			},
		}
		p.pools[size] = sp
	}
	return sp
}

// Get returns a zeroed vector of the given length.
func (p *VectorPool) Get(size int) []float64 {
	return p.poolFor(size).Get().([]float64)
}

// Put zeroes v and makes it available again.
func (p *VectorPool) Put(v []float64) {
	clear(v)
	p.poolFor(len(v)).Put(v)
}

// Workspace is a set of scratch vectors checked out together and returned
// together by Release.
type Workspace struct {
	pool *VectorPool
	vecs [][]float64
}

// Acquire checks out count vectors of length size. Callers defer Release
// immediately so the vectors go back on every return path.
func (p *VectorPool) Acquire(size, count int) *Workspace {
	ws := &Workspace{pool: p, vecs: make([][]float64, count)}
	for i := range ws.vecs {
		ws.vecs[i] = p.Get(size)
	}
	return ws
}

// Vec returns the i-th scratch vector.
func (w *Workspace) Vec(i int) []float64 { return w.vecs[i] }

func (w *Workspace) Release() {
	for _, v := range w.vecs {
		if v != nil {
			w.pool.Put(v)
		}
	}
	w.vecs = nil
}
