package process

import (
	"github.com/mna/divm/runtime/fiber"
	"github.com/mna/divm/runtime/value"
)

// MinPoolSize is the size the pool shrinks back to; the scheduler triggers a
// shrink every 300 ticks once the pool exceeds twice this.
const MinPoolSize = 8

// Pool recycles dead Process records. A recycled instance
// keeps its fiber array in memory; Create reuses it as-is when the
// blueprint's fiber count matches, and reallocates otherwise.
type Pool struct {
	free []*Process
}

// Len reports how many recycled processes are waiting for reuse.
func (pl *Pool) Len() int { return len(pl.free) }

// Create returns a fresh-looking process shaped for def: either a new
// record or a recycled one with its fibers and privates resized to fit.
func (pl *Pool) Create(def *Def) *Process {
	var p *Process
	if n := len(pl.free); n > 0 {
		p = pl.free[n-1]
		pl.free[n-1] = nil
		pl.free = pl.free[:n-1]
	} else {
		p = &Process{}
	}

	const blueprintFibers = 1
	if p.TotalFibers != blueprintFibers {
		p.Fibers = make([]*fiber.Fiber, blueprintFibers)
		for i := range p.Fibers {
			p.Fibers[i] = fiber.New()
		}
		p.TotalFibers = blueprintFibers
	}
	if len(p.Privates) != def.NumPrivates {
		p.Privates = make([]value.Value, def.NumPrivates)
	}
	copy(p.Privates, def.InitialPrivates)

	p.Name = def.Name
	p.DefIndex = def.Index
	return p
}

// Recycle resets p and returns it to the pool.
func (pl *Pool) Recycle(p *Process) {
	p.reset()
	pl.free = append(pl.free, p)
}

// Shrink caps the pool back to MinPoolSize, letting the excess be
// collected.
func (pl *Pool) Shrink() {
	if len(pl.free) <= MinPoolSize {
		return
	}
	for i := MinPoolSize; i < len(pl.free); i++ {
		pl.free[i] = nil
	}
	pl.free = pl.free[:MinPoolSize]
}
