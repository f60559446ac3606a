package process

import (
	"math"

	"github.com/mna/divm/runtime/fiber"
	"github.com/mna/divm/runtime/value"
)

// Signal kinds understood by the runtime. SigKill acts immediately; the
// others are stored in the target's signal slot for its script to observe
// and act upon cooperatively.
const (
	SigKill int64 = iota
	SigFreeze
	SigWake
	SigHide
	SigShow
)

// Hooks are the host callbacks the embedder uses to project script state
// onto its entities. Each is optional.
type Hooks struct {
	// OnCreate fires when a spawn completes allocation, before the new
	// process runs its first quantum, so UserData is available to native
	// process functions from the very first instruction.
	OnCreate func(*Process)
	// OnStart fires the first time the process requests a frame yield.
	OnStart func(*Process)
	// OnUpdate fires after each scheduler step of the process.
	OnUpdate func(*Process, float64)
	// OnDestroy fires exactly once per lifetime, when the scheduler reaps
	// the dead process.
	OnDestroy func(*Process, int64)
	// OnRender fires for every alive, initialized process during Render.
	OnRender func(*Process)
}

// Scheduler owns the alive-process list, the pool, the process definition
// registry and the clock, and drives every process one quantum per tick
// once per tick. It is a field of the owning engine, not a singleton.
type Scheduler struct {
	Now         float64
	LastFrameDt float64
	FrameCount  int64

	Hooks Hooks
	// ErrSink receives every runtime error that kills a process; the core
	// does no I/O of its own.
	ErrSink func(error)
	// MaxSteps bounds each fiber's lifetime instruction count when non-zero.
	MaxSteps int64

	host fiber.Host

	defs     []*Def
	defIndex map[string]int

	alive []*Process
	clean []*Process
	pool  Pool

	nextID       int64
	totalSpawned int64

	current      *Process
	currentFiber *fiber.Fiber
}

// NewScheduler returns an empty scheduler dispatching through host.
func NewScheduler(host fiber.Host) *Scheduler {
	return &Scheduler{
		host:     host,
		defIndex: make(map[string]int),
		nextID:   1,
	}
}

// RegisterDef adds (or replaces, on incremental reloads) a process
// definition, assigning its index.
func (s *Scheduler) RegisterDef(def *Def) {
	if i, ok := s.defIndex[def.Name]; ok {
		def.Index = i
		s.defs[i] = def
		return
	}
	def.Index = len(s.defs)
	s.defIndex[def.Name] = def.Index
	s.defs = append(s.defs, def)
}

// DefByName returns the registered definition with that name.
func (s *Scheduler) DefByName(name string) (*Def, bool) {
	i, ok := s.defIndex[name]
	if !ok {
		return nil, false
	}
	return s.defs[i], true
}

// Def returns the definition at index i.
func (s *Scheduler) Def(i int) *Def { return s.defs[i] }

// Current returns the process whose fiber is executing, nil between steps.
func (s *Scheduler) Current() *Process { return s.current }

// TotalAlive reports the number of processes on the alive list.
func (s *Scheduler) TotalAlive() int { return len(s.alive) }

// TotalProcesses reports the cumulative number of spawns.
func (s *Scheduler) TotalProcesses() int64 { return s.totalSpawned }

// PoolLen reports the number of recycled processes waiting for reuse.
func (s *Scheduler) PoolLen() int { return s.pool.Len() }

// FindByID scans the alive list for the process with that ID.
func (s *Scheduler) FindByID(id int64) *Process {
	for _, p := range s.alive {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Resolve maps a process reference value back to the live process,
// rejecting stale generations.
func (s *Scheduler) Resolve(ref value.Value) *Process {
	p := s.FindByID(ref.AsInt())
	if p == nil || p.Gen != ref.Gen {
		return nil
	}
	return p
}

// Spawn allocates a process from the pool for def, assigns a fresh ID,
// fires on_create, and executes the entry fiber up to its first yield so
// the first suspended state is visible to the caller.
func (s *Scheduler) Spawn(def *Def, args []value.Value) (*Process, *value.RuntimeError) {
	p := s.pool.Create(def)
	p.ID = s.nextID
	s.nextID++
	s.totalSpawned++
	p.State = fiber.Running
	p.spawnTick = s.FrameCount

	p.Privates[idxID] = value.Int(p.ID)
	if s.current != nil {
		p.Privates[idxFather] = value.Int(s.current.ID)
	}

	f := p.Fibers[0]
	f.MaxSteps = s.MaxSteps
	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: def.Entry}
	copy(f.Stack[1:], args)
	f.SP = 1 + len(args)
	if err := f.PushFrame(def.Entry, nil, len(args)); err != nil {
		s.pool.Recycle(p)
		return nil, err
	}
	f.State = fiber.Running
	p.NextFiber = 1
	p.CurrentFiber = 0

	s.alive = append(s.alive, p)
	if s.Hooks.OnCreate != nil {
		s.Hooks.OnCreate(p)
	}

	prev, prevFiber := s.current, s.currentFiber
	s.current = p
	s.step(p)
	s.current, s.currentFiber = prev, prevFiber
	return p, nil
}

// Kill marks the process dead; the scheduler reaps it on the next pass.
func (s *Scheduler) Kill(id int64) bool {
	p := s.FindByID(id)
	if p == nil {
		return false
	}
	p.State = fiber.Dead
	return true
}

// KillAll marks every alive process dead.
func (s *Scheduler) KillAll() {
	for _, p := range s.alive {
		p.State = fiber.Dead
	}
}

// Signal delivers kind to the target: SigKill kills immediately, any other
// kind lands in the target's signal slot for its script to observe.
func (s *Scheduler) Signal(id int64, kind value.Value) bool {
	p := s.FindByID(id)
	if p == nil {
		return false
	}
	if kind.Kind == value.KInt && kind.I == SigKill {
		p.State = fiber.Dead
		return true
	}
	p.Signal = kind
	return true
}

// Freeze excludes the process from scheduling until Unfreeze.
func (s *Scheduler) Freeze(id int64) bool {
	p := s.FindByID(id)
	if p == nil || p.State == fiber.Dead {
		return false
	}
	p.State = fiber.Frozen
	return true
}

// Unfreeze resumes a frozen process.
func (s *Scheduler) Unfreeze(id int64) bool {
	p := s.FindByID(id)
	if p == nil || p.State != fiber.Frozen {
		return false
	}
	p.State = fiber.Running
	return true
}

// Update advances the clock by dt and runs one tick: every process alive at
// the start of the tick is visited exactly once; processes spawned during
// the tick wait for the next one; dead processes are reaped, destroyed and
// recycled in the clean phase.
func (s *Scheduler) Update(dt float64) {
	s.Now += dt
	s.LastFrameDt = dt
	s.FrameCount++

	n := len(s.alive)
	for i := 0; i < n; {
		p := s.alive[i]
		if p.spawnTick == s.FrameCount {
			// spawned during this very tick; it already ran to its first
			// yield inside Spawn.
			i++
			continue
		}
		if p.State == fiber.Suspended && s.Now >= p.ResumeTime {
			p.State = fiber.Running
		}
		switch p.State {
		case fiber.Frozen, fiber.Suspended:
			i++
		case fiber.Dead:
			n = s.reap(i, n)
		default:
			s.current = p
			s.step(p)
			if s.Hooks.OnUpdate != nil {
				s.Hooks.OnUpdate(p, dt)
			}
			s.current, s.currentFiber = nil, nil
			if p.State == fiber.Dead {
				n = s.reap(i, n)
			} else {
				i++
			}
		}
	}

	for _, p := range s.clean {
		if s.Hooks.OnDestroy != nil {
			s.Hooks.OnDestroy(p, p.ExitCode)
		}
		if s.current == p {
			s.current, s.currentFiber = nil, nil
		}
		s.pool.Recycle(p)
	}
	s.clean = s.clean[:0]

	if s.FrameCount%300 == 0 && s.pool.Len() > 2*MinPoolSize {
		s.pool.Shrink()
	}
}

// reap moves alive[i] to the clean list with a swap-and-pop, returning the
// updated visit limit.
func (s *Scheduler) reap(i, n int) int {
	s.clean = append(s.clean, s.alive[i])
	last := len(s.alive) - 1
	s.alive[i] = s.alive[last]
	s.alive[last] = nil
	s.alive = s.alive[:last]
	if last < n {
		n = last
	}
	return n
}

// Render fires on_render for every alive, initialized process.
func (s *Scheduler) Render() {
	if s.Hooks.OnRender == nil {
		return
	}
	for _, p := range s.alive {
		if p.State != fiber.Dead && p.Initialized {
			s.Hooks.OnRender(p)
		}
	}
}

// step runs one quantum of p: pick the ready fiber (round-robin), dispatch
// it, and apply the resulting state transition.
func (s *Scheduler) step(p *Process) {
	f := s.getReadyFiber(p)
	if f == nil {
		return
	}
	s.currentFiber = f

	ex := fiber.Run(s.host, f)
	switch ex.Reason {
	case fiber.ExitYield:
		f.State = fiber.Suspended
		f.ResumeTime = s.Now + ex.YieldMs/1000

	case fiber.ExitFrame:
		p.State = fiber.Suspended
		p.ResumeTime = s.Now + s.LastFrameDt*(ex.FramePct-100)/100
		if !p.Initialized {
			p.Initialized = true
			if s.Hooks.OnStart != nil {
				s.Hooks.OnStart(p)
			}
		}

	case fiber.ExitDone:
		if !s.anyLiveFiber(p) {
			p.State = fiber.Dead
		}

	case fiber.ExitError:
		p.State = fiber.Dead
		if s.ErrSink != nil {
			s.ErrSink(ex.Err)
		}
	}
}

// anyLiveFiber reports whether any of p's allocated fibers is not Dead.
func (s *Scheduler) anyLiveFiber(p *Process) bool {
	for _, f := range p.Fibers[:p.NextFiber] {
		if f.Alive() {
			return true
		}
	}
	return false
}

// getReadyFiber scans the process's fibers round-robin starting after the
// one that ran last. When none is ready the process itself transitions:
// dead when no fiber is live, suspended until the earliest resume time when
// at least one is waiting.
func (s *Scheduler) getReadyFiber(p *Process) *fiber.Fiber {
	n := p.NextFiber
	if n == 0 {
		p.State = fiber.Dead
		return nil
	}
	start := p.CurrentFiber + 1
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		f := p.Fibers[idx]
		if f.State == fiber.Running {
			p.CurrentFiber = idx
			return f
		}
		if f.State == fiber.Suspended && f.ResumeTime <= s.Now {
			f.State = fiber.Running
			p.CurrentFiber = idx
			return f
		}
	}

	anyLive, anySuspended := false, false
	minResume := math.Inf(1)
	for _, f := range p.Fibers[:n] {
		if f.Alive() {
			anyLive = true
		}
		if f.State == fiber.Suspended {
			anySuspended = true
			if f.ResumeTime < minResume {
				minResume = f.ResumeTime
			}
		}
	}
	switch {
	case !anyLive:
		p.State = fiber.Dead
	case anySuspended:
		p.State = fiber.Suspended
		p.ResumeTime = minResume
	}
	// otherwise the process stays running and is revisited next tick.
	return nil
}
