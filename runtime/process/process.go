// Package process implements the live Process, its immutable blueprint
// (Def), the recycling process pool and the cooperative per-tick scheduler.
// Everything here runs on the single interpreter thread;
// no locking is required.
package process

import (
	"github.com/mna/divm/runtime/fiber"
	"github.com/mna/divm/runtime/value"
)

// Privileged private slot indices used by the runtime itself.
var (
	idxID, _     = value.PrivateIndex("id")
	idxFather, _ = value.PrivateIndex("father")
)

// Def is the immutable blueprint compiled from a script process
// declaration: spawning clones its initial privates and installs its entry
// function on a fresh fiber.
type Def struct {
	Name  string
	Index int
	Entry *value.Function

	// NumPrivates is the fixed privileged set plus the process-declared
	// extras; PrivateIndex maps every private name this type knows to its
	// slot.
	NumPrivates  int
	PrivateIndex map[string]int

	// InitialPrivates is the spawn-time value of each slot.
	InitialPrivates []value.Value
}

// NewDef builds a blueprint for entry with the given extra private names
// (beyond the fixed privileged set). Every slot starts at integer zero, the
// convention the privileged names (x, y, angle, ...) rely on.
func NewDef(name string, entry *value.Function, extraPrivates []string) *Def {
	d := &Def{
		Name:         name,
		Entry:        entry,
		NumPrivates:  value.NumPrivates + len(extraPrivates),
		PrivateIndex: make(map[string]int, value.NumPrivates+len(extraPrivates)),
	}
	for i, n := range value.PrivateNames {
		d.PrivateIndex[n] = i
	}
	for i, n := range extraPrivates {
		d.PrivateIndex[n] = value.NumPrivates + i
	}
	d.InitialPrivates = make([]value.Value, d.NumPrivates)
	for i := range d.InitialPrivates {
		d.InitialPrivates[i] = value.Int(0)
	}
	return d
}

// Process is a live instance of a Def: a monotonic identity, a
// recycled fiber array, the private slot array, and the host-facing state.
type Process struct {
	// ID is assigned at spawn and never reissued; Gen increments each time
	// the underlying record is recycled, invalidating stale references.
	ID  int64
	Gen uint32

	Name     string
	DefIndex int

	Fibers       []*fiber.Fiber
	TotalFibers  int // capacity of the fiber array, preserved across recycling
	CurrentFiber int // index of the fiber that ran last
	NextFiber    int // number of fibers in use

	State      fiber.State
	ResumeTime float64

	Privates []value.Value

	// UserData is opaque to the core; the host projects script state onto
	// its entities through it.
	UserData any
	// Signal is the inter-process inbox slot, nil when empty.
	Signal value.Value

	// Initialized flips when the first frame-yield fires the on_start hook.
	Initialized bool
	ExitCode    int64

	// spawnTick is the scheduler tick during which the process was spawned;
	// it is not stepped until the next one.
	spawnTick int64
}

// Ref returns the process reference value scripts hold.
func (p *Process) Ref() value.Value { return value.Process(p.ID, p.Gen) }

// Alive reports whether the process is still scheduled.
func (p *Process) Alive() bool { return p.State != fiber.Dead }

// AddFiber installs fn on a free (or newly grown) fiber of the process,
// returning it. The entry frame is set up with no arguments.
func (p *Process) AddFiber(fn *value.Function) (*fiber.Fiber, *value.RuntimeError) {
	var f *fiber.Fiber
	if p.NextFiber < p.TotalFibers {
		f = p.Fibers[p.NextFiber]
		f.Reset()
	} else {
		f = fiber.New()
		p.Fibers = append(p.Fibers, f)
		p.TotalFibers++
	}
	p.NextFiber++
	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.SP = 1
	if err := f.PushFrame(fn, nil, 0); err != nil {
		return nil, err
	}
	f.State = fiber.Running
	return f, nil
}

// reset returns the process to a blank, reusable state while keeping its
// fiber array allocated for shape-aware reuse.
func (p *Process) reset() {
	p.ID = 0
	p.Gen++
	p.Name = ""
	p.DefIndex = 0
	for _, f := range p.Fibers {
		f.Reset()
	}
	p.CurrentFiber = 0
	p.NextFiber = 0
	p.State = fiber.Dead
	p.ResumeTime = 0
	for i := range p.Privates {
		p.Privates[i] = value.Nil
	}
	p.UserData = nil
	p.Signal = value.Nil
	p.Initialized = false
	p.ExitCode = 0
	p.spawnTick = 0
}
