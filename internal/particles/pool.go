package particles

import (
	"math"
	"math/rand"

	"github.com/seawatts/grid-sub000/internal/state"
)

const (
	// DefaultCapacity bounds the number of live particles.
	DefaultCapacity = 10000
	// Damping is applied to particle velocity once per tick.
	Damping = 0.92
)

// RGB is an unpacked particle colour.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// Pack returns the colour as 0xRRGGBB.
func (c RGB) Pack() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Unpack splits a 0xRRGGBB value.
func Unpack(v uint32) RGB {
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Pool is a fixed-capacity struct-of-arrays particle store. Live entries
// always occupy indices [0, active); the free stack holds the rest with
// index active on top.
type Pool struct {
	x       []float64
	y       []float64
	vx      []float64
	vy      []float64
	life    []float64
	maxLife []float64
	color   []uint32
	id      []int

	free      []int
	active    int
	nextID    int
	evictions uint64
}

// NewPool allocates a pool. Non-positive capacities use DefaultCapacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		x:       make([]float64, capacity),
		y:       make([]float64, capacity),
		vx:      make([]float64, capacity),
		vy:      make([]float64, capacity),
		life:    make([]float64, capacity),
		maxLife: make([]float64, capacity),
		color:   make([]uint32, capacity),
		id:      make([]int, capacity),
		free:    make([]int, 0, capacity),
		nextID:  1,
	}
	p.resetFree()
	return p
}

func (p *Pool) resetFree() {
	p.free = p.free[:0]
	for i := len(p.x) - 1; i >= p.active; i-- {
		p.free = append(p.free, i)
	}
}

// Spawn adds a particle and returns its id. When the pool is full the live
// particle with the least remaining life is overwritten.
func (p *Pool) Spawn(x, y, vx, vy, life float64, c RGB) int {
	if p == nil {
		return 0
	}
	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
		p.active++
	} else {
		idx = p.weakest()
		p.evictions++
	}
	p.x[idx] = x
	p.y[idx] = y
	p.vx[idx] = vx
	p.vy[idx] = vy
	p.life[idx] = life
	p.maxLife[idx] = life
	p.color[idx] = c.Pack()
	p.id[idx] = p.nextID
	p.nextID++
	return p.id[idx]
}

func (p *Pool) weakest() int {
	best := 0
	for i := 1; i < p.active; i++ {
		if p.life[i] < p.life[best] {
			best = i
		}
	}
	return best
}

// Update advances every live particle by one tick scaled by gameSpeed and
// drops the expired ones, compacting survivors toward the front.
func (p *Pool) Update(gameSpeed float64) {
	if p == nil {
		return
	}
	if gameSpeed <= 0 {
		gameSpeed = 1
	}
	damping := math.Pow(Damping, gameSpeed)
	write := 0
	for read := 0; read < p.active; read++ {
		p.x[read] += p.vx[read] * gameSpeed
		p.y[read] += p.vy[read] * gameSpeed
		p.vx[read] *= damping
		p.vy[read] *= damping
		p.life[read] -= gameSpeed
		if p.life[read] <= 0 {
			continue
		}
		if write != read {
			p.x[write] = p.x[read]
			p.y[write] = p.y[read]
			p.vx[write] = p.vx[read]
			p.vy[write] = p.vy[read]
			p.life[write] = p.life[read]
			p.maxLife[write] = p.maxLife[read]
			p.color[write] = p.color[read]
			p.id[write] = p.id[read]
		}
		write++
	}
	for i := p.active - 1; i >= write; i-- {
		p.free = append(p.free, i)
	}
	p.active = write
}

// ToArray copies the live particles out of the pool.
func (p *Pool) ToArray() []state.Particle {
	if p == nil {
		return nil
	}
	out := make([]state.Particle, p.active)
	for i := 0; i < p.active; i++ {
		out[i] = state.Particle{
			ID:       p.id[i],
			Position: state.Position{X: p.x[i], Y: p.y[i]},
			Velocity: state.Position{X: p.vx[i], Y: p.vy[i]},
			Color:    p.color[i],
			Life:     p.life[i],
			MaxLife:  p.maxLife[i],
		}
	}
	return out
}

// Len reports the number of live particles.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return p.active
}

// Cap reports the pool capacity.
func (p *Pool) Cap() int {
	if p == nil {
		return 0
	}
	return len(p.x)
}

// Evictions reports how many live particles were recycled early.
func (p *Pool) Evictions() uint64 {
	if p == nil {
		return 0
	}
	return p.evictions
}

// NextID is the id the next spawned particle will receive.
func (p *Pool) NextID() int {
	if p == nil {
		return 0
	}
	return p.nextID
}

// Reset drops every particle and restarts ids at nextID.
func (p *Pool) Reset(nextID int) {
	if p == nil {
		return
	}
	if nextID < 1 {
		nextID = 1
	}
	p.active = 0
	p.nextID = nextID
	p.resetFree()
}

// Radial spawns count particles evenly spaced around a circle.
func (p *Pool) Radial(x, y float64, count int, speed, life float64, c RGB) {
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count)
		p.Spawn(x, y, math.Cos(angle)*speed, math.Sin(angle)*speed, life, c)
	}
}

// Scatter spawns count particles in random directions with speeds and lives
// drawn uniformly from the given ranges.
func (p *Pool) Scatter(rng *rand.Rand, x, y float64, count int, minSpeed, maxSpeed, minLife, maxLife float64, c RGB) {
	for i := 0; i < count; i++ {
		angle := rng.Float64() * 2 * math.Pi
		speed := minSpeed + rng.Float64()*(maxSpeed-minSpeed)
		life := minLife + math.Floor(rng.Float64()*(maxLife-minLife+1))
		p.Spawn(x, y, math.Cos(angle)*speed, math.Sin(angle)*speed, life, c)
	}
}
