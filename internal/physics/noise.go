package physics

import "math/rand/v2"

// noiseStream separates the noise sequence from any other PCG stream that
// might be derived from the same run seed.
const noiseStream = 0x9e3779b97f4a7c15

// NoiseSource draws uniform perturbations in [-A/2, A/2) from a single
// seeded stream. The stream advances once per Fill, so a run is fully
// determined by its seed.
type NoiseSource struct {
	amp   float64
	seed  uint64
	rng   *rand.Rand
	fills int
}

func NewNoiseSource(amplitude float64, seed uint64) *NoiseSource {
	return &NoiseSource{
		amp:  amplitude,
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^noiseStream)),
	}
}

func (n *NoiseSource) Amplitude() float64 { return n.amp }
func (n *NoiseSource) Seed() uint64       { return n.seed }

// Fills reports how many vectors have been produced.
func (n *NoiseSource) Fills() int { return n.fills }

// Fill writes one sample per cell into dst. A zero amplitude yields zeros
// without advancing the stream.
func (n *NoiseSource) Fill(dst []float64) {
	n.fills++
	if n.amp == 0 {
		clear(dst)
		return
	}
	for i := range dst {
		dst[i] = n.amp * (n.rng.Float64() - 0.5)
	}
}

// Sample returns a fresh vector of length size.
func (n *NoiseSource) Sample(size int) []float64 {
	v := make([]float64, size)
	n.Fill(v)
	return v
}
