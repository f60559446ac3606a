package engine

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mna/divm/runtime/process"
	"github.com/mna/divm/runtime/value"
	"github.com/stretchr/testify/require"
)

const frameDt = 1.0 / 60

func mustRun(t *testing.T, it *Interpreter, src string) {
	t.Helper()
	require.NoError(t, it.Run("test.divm", []byte(src)))
}

func getGlobal(t *testing.T, it *Interpreter, name string) value.Value {
	t.Helper()
	v, ok := it.TryGetGlobal(name)
	require.True(t, ok, "global %q not declared", name)
	return v
}

func privOf(t *testing.T, p *process.Process, name string) value.Value {
	t.Helper()
	idx, ok := value.PrivateIndex(name)
	require.True(t, ok)
	return p.Privates[idx]
}

// one process increments a private once per frame.
func TestScenarioCounter(t *testing.T) {
	it := New()
	mustRun(t, it, `
process ticker()
begin
	private x = 0
	while (true)
	begin
		x = x + 1
		frame(100)
	end
end
`)
	p, err := it.CallProcess("ticker")
	require.NoError(t, err)

	// the spawn-time quantum counts as the first tick: the process runs to
	// its first frame yield immediately.
	require.Equal(t, value.Int(1), privOf(t, p, "x"))

	for i := 0; i < 4; i++ {
		it.Update(frameDt)
	}
	require.Equal(t, value.Int(5), privOf(t, p, "x"))
}

// a child spawned by a parent writes a global the host can read back.
func TestScenarioSpawnChain(t *testing.T) {
	it := New()
	mustRun(t, it, `
global g

process child()
begin
	frame(100)
	g = 42
	frame(100)
end

process parent()
begin
	spawn child()
	frame(100)
end
`)
	_, err := it.CallProcess("parent")
	require.NoError(t, err)
	require.True(t, getGlobal(t, it, "g").IsNil())

	it.Update(frameDt)
	require.Equal(t, value.Int(42), getGlobal(t, it, "g"))
}

// killing everything reaps every process and fires on_destroy exactly once
// each.
func TestScenarioKillAll(t *testing.T) {
	it := New()
	destroyed := 0
	it.SetHooks(process.Hooks{
		OnDestroy: func(*process.Process, int64) { destroyed++ },
	})
	mustRun(t, it, `
process looper()
begin
	while (true) begin frame(100) end
end

spawn looper()
spawn looper()
spawn looper()
`)
	require.Equal(t, 3, it.GetTotalAlive())

	it.KillAll()
	it.Update(frameDt)
	require.Equal(t, 0, it.GetTotalAlive())
	require.Equal(t, 3, destroyed)
	require.Equal(t, 3, it.Scheduler().PoolLen())
}

// native class with a method, a writable property and a read-only one.
func TestScenarioNativeClass(t *testing.T) {
	type acc struct{ total, count int64 }

	it := New()
	def := it.RegisterNativeClass("Accumulator",
		func(args []value.Value) (any, error) {
			return &acc{total: args[0].AsInt()}, nil
		},
		func(handle any) {}, 1)
	it.AddNativeMethod(def, "add", func(handle any, args []value.Value) ([]value.Value, error) {
		a := handle.(*acc)
		a.total += args[0].AsInt()
		a.count++
		return []value.Value{value.Int(a.total)}, nil
	})
	it.AddNativeProperty(def, "value",
		func(handle any) (value.Value, error) { return value.Int(handle.(*acc).total), nil },
		func(handle any, v value.Value) error { handle.(*acc).total = v.AsInt(); return nil })
	it.AddNativeProperty(def, "count",
		func(handle any) (value.Value, error) { return value.Int(handle.(*acc).count), nil },
		nil)

	mustRun(t, it, `
global v, c, err_kind

var a = Accumulator(40)
a.add(2)
v = a.value
c = a.count

try begin a.count = 99 end
catch (e) begin err_kind = e.kind end
`)
	require.Equal(t, value.Int(42), getGlobal(t, it, "v"))
	require.Equal(t, value.Int(1), getGlobal(t, it, "c"))
	ek := getGlobal(t, it, "err_kind")
	require.Equal(t, value.KString, ek.Kind)
	require.Equal(t, "ReadOnlyError", ek.AsString().String())
}

// compile to disk, reload in a fresh engine, behaviorally identical.
func TestScenarioBytecodeRoundtrip(t *testing.T) {
	src := `
global __bytecode_ok

process boot()
begin
	__bytecode_ok = 12345
	frame(100)
end
`
	path := filepath.Join(t.TempDir(), "boot.divc")
	require.NoError(t, New().CompileToBytecode("boot.divm", []byte(src), path))

	it := New()
	require.NoError(t, it.LoadBytecode(path))
	_, err := it.CallProcess("boot")
	require.NoError(t, err)
	require.Equal(t, value.Int(12345), getGlobal(t, it, "__bytecode_ok"))
}

// 100 processes waiting 1000ms all sleep until the clock reaches one
// second, then all run on the same tick.
func TestScenarioSuspensionFairness(t *testing.T) {
	it := New()
	mustRun(t, it, `
global n
n = 0

process waiter()
begin
	wait(1000)
	n = n + 1
	frame(100)
end

var i = 0
while (i < 100)
begin
	spawn waiter()
	i = i + 1
end
`)
	require.Equal(t, 100, it.GetTotalAlive())
	require.Equal(t, value.Int(0), getGlobal(t, it, "n"))

	// 1/64 is exactly representable, so 64 ticks sum to exactly 1.0s and
	// the boundary tick is unambiguous.
	const dt = 1.0 / 64
	for tick := 1; tick <= 63; tick++ {
		it.Update(dt)
		require.Equal(t, value.Int(0), getGlobal(t, it, "n"), "tick %d", tick)
	}
	it.Update(dt) // the tick where the clock reaches 1.0s
	require.Equal(t, value.Int(100), getGlobal(t, it, "n"))
}

func TestWaitZeroReadyNextTick(t *testing.T) {
	it := New()
	mustRun(t, it, `
global ran
process w0()
begin
	wait(0)
	ran = 1
	frame(100)
end
`)
	_, err := it.CallProcess("w0")
	require.NoError(t, err)
	require.True(t, getGlobal(t, it, "ran").IsNil())

	it.Update(frameDt)
	require.Equal(t, value.Int(1), getGlobal(t, it, "ran"))
}

func TestMonotonicIDs(t *testing.T) {
	it := New()
	mustRun(t, it, `
process p() begin frame(100) end
`)
	var ids []int64
	for i := 0; i < 3; i++ {
		p, err := it.CallProcess("p")
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	require.Less(t, ids[0], ids[1])
	require.Less(t, ids[1], ids[2])
	require.Equal(t, value.Int(ids[2]), privOf(t, it.FindProcessByID(ids[2]), "id"))
}

func TestSpawnKillRecycle(t *testing.T) {
	it := New()
	mustRun(t, it, `
process p() begin while (true) begin frame(100) end end
`)
	p, err := it.CallProcess("p")
	require.NoError(t, err)
	require.Equal(t, 1, it.GetTotalAlive())

	it.Scheduler().Kill(p.ID)
	it.Update(frameDt)
	require.Equal(t, 0, it.GetTotalAlive())
	require.Equal(t, 1, it.Scheduler().PoolLen())
	require.Equal(t, int64(1), it.GetTotalProcesses())
}

func TestDivisionByZeroCaught(t *testing.T) {
	it := New()
	mustRun(t, it, `
global r, kind
try
begin
	r = 1 / 0
end
catch (e)
begin
	kind = e.kind
	r = -1
end
`)
	require.Equal(t, "ArithmeticError", getGlobal(t, it, "kind").AsString().String())
	require.Equal(t, value.Int(-1), getGlobal(t, it, "r"))
}

func TestUncaughtToplevelError(t *testing.T) {
	it := New()
	err := it.Run("test.divm", []byte(`
global r
r = 1 / 0
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ArithmeticError")
}

// a crashing process dies alone: the scheduler and its neighbours carry on.
func TestErrorIsolation(t *testing.T) {
	it := New()
	var sunk []error
	it.SetErrorSink(func(err error) { sunk = append(sunk, err) })
	mustRun(t, it, `
global survivor_ran

process crasher()
begin
	frame(100)
	var z = 1 / 0
end

process survivor()
begin
	while (true)
	begin
		survivor_ran = 1
		frame(100)
	end
end

spawn crasher()
spawn survivor()
`)
	require.Equal(t, 2, it.GetTotalAlive())

	it.Update(frameDt) // crasher divides by zero and dies
	require.Len(t, sunk, 1)
	require.Contains(t, sunk[0].Error(), "ArithmeticError")
	require.Equal(t, 1, it.GetTotalAlive())

	it.Update(frameDt)
	require.Equal(t, value.Int(1), getGlobal(t, it, "survivor_ran"))
}

func TestClosuresShareCapturedState(t *testing.T) {
	it := New()
	mustRun(t, it, `
global bump

fn make_counter()
begin
	var n = 0
	return fn()
	begin
		n = n + 1
		return n
	end
end

bump = make_counter()
`)
	v, err := it.CallFunction("bump")
	require.NoError(t, err)
	require.Equal(t, value.Int(1), v)
	v, err = it.CallFunction("bump")
	require.NoError(t, err)
	require.Equal(t, value.Int(2), v)
}

func TestGosubSubroutines(t *testing.T) {
	it := New()
	mustRun(t, it, `
fn compute()
begin
	var acc = 0
	gosub add_two
	gosub add_two
	return acc

	label add_two
	acc = acc + 2
	retsub
end
`)
	v, err := it.CallFunction("compute")
	require.NoError(t, err)
	require.Equal(t, value.Int(4), v)
}

func TestIfElseChain(t *testing.T) {
	it := New()
	mustRun(t, it, `
global r
var a = 5
if (a < 1)
begin
	r = 1
end
else if (a < 10)
begin
	r = 2
end
else
begin
	r = 3
end
`)
	require.Equal(t, value.Int(2), getGlobal(t, it, "r"))
}

func TestForInArrayAndMap(t *testing.T) {
	it := New()
	mustRun(t, it, `
global total, names

fn sum(items)
begin
	var t = 0
	for el in items begin t = t + el end
	return t
end

total = sum([1, 2, 3, 4])

var m = {"a": 1, "b": 2}
names = 0
for k in m begin names = names + m[k] end
`)
	require.Equal(t, value.Int(10), getGlobal(t, it, "total"))
	require.Equal(t, value.Int(3), getGlobal(t, it, "names"))
}

func TestClassFieldsAndMethods(t *testing.T) {
	it := New()
	mustRun(t, it, `
global r

class counter
begin
	var n
	fn bump(by)
	begin
		n = n + by
		return n
	end
end

var c = new counter(5)
c.bump(3)
r = c.bump(2)
`)
	require.Equal(t, value.Int(10), getGlobal(t, it, "r"))
}

func TestStructInstances(t *testing.T) {
	it := New()
	mustRun(t, it, `
global r

struct vec2
begin
	var x, y
end

var v = new vec2(1, 2)
v.y = v.y + 10
r = v.x + v.y
`)
	require.Equal(t, value.Int(13), getGlobal(t, it, "r"))
}

func TestNativeStructFields(t *testing.T) {
	it := New()
	def := it.RegisterNativeStruct("Point", 8, nil, nil)
	require.NoError(t, it.AddStructField(def, "x", 0, value.F32))
	require.NoError(t, it.AddStructField(def, "y", 4, value.F32))

	mustRun(t, it, `
global gx, gy
var p = new Point()
p.x = 1.5
p.y = -2.25
gx = p.x
gy = p.y
`)
	require.Equal(t, value.Float(1.5), getGlobal(t, it, "gx"))
	require.Equal(t, value.Float(-2.25), getGlobal(t, it, "gy"))
}

func TestDivmodMultipleResults(t *testing.T) {
	it := New()
	mustRun(t, it, `
global q, rem
var r = divmod(7, 2)
q = r[0]
rem = r[1]
`)
	require.Equal(t, value.Int(3), getGlobal(t, it, "q"))
	require.Equal(t, value.Int(1), getGlobal(t, it, "rem"))
}

func TestAdvanceMovesAlongAngle(t *testing.T) {
	it := New()
	mustRun(t, it, `
process mover()
begin
	angle = 0
	advance(10)
	frame(100)
end
`)
	p, err := it.CallProcess("mover")
	require.NoError(t, err)
	require.InDelta(t, 10.0, privOf(t, p, "x").AsFloat(), 1e-9)
	require.InDelta(t, 0.0, privOf(t, p, "y").AsFloat(), 1e-9)
	require.Equal(t, value.Int(0), privOf(t, p, "xold"))
}

func TestSignalDelivery(t *testing.T) {
	it := New()
	mustRun(t, it, `
global got

process listener()
begin
	while (true)
	begin
		var s = get_signal()
		if (s != nil) begin got = s end
		frame(100)
	end
end
`)
	p, err := it.CallProcess("listener")
	require.NoError(t, err)

	it.Scheduler().Signal(p.ID, value.Int(process.SigShow))
	it.Update(frameDt)
	require.Equal(t, value.Int(process.SigShow), getGlobal(t, it, "got"))

	// the kill signal acts immediately.
	it.Scheduler().Signal(p.ID, value.Int(process.SigKill))
	it.Update(frameDt)
	require.Equal(t, 0, it.GetTotalAlive())
}

func TestFreezeExcludesFromScheduling(t *testing.T) {
	it := New()
	mustRun(t, it, `
process ticker()
begin
	private x = 0
	while (true) begin x = x + 1 frame(100) end
end
`)
	p, err := it.CallProcess("ticker")
	require.NoError(t, err)
	require.Equal(t, value.Int(1), privOf(t, p, "x"))

	require.True(t, it.Freeze(p.ID))
	it.Update(frameDt)
	it.Update(frameDt)
	require.Equal(t, value.Int(1), privOf(t, p, "x"))

	require.True(t, it.Unfreeze(p.ID))
	it.Update(frameDt)
	require.Equal(t, value.Int(2), privOf(t, p, "x"))
}

func TestProcessAttrAcrossProcesses(t *testing.T) {
	it := New()
	mustRun(t, it, `
global cx

process child()
begin
	x = 11
	frame(100)
end

process parent()
begin
	var c = spawn child()
	cx = c.x
	frame(100)
end
`)
	_, err := it.CallProcess("parent")
	require.NoError(t, err)
	require.Equal(t, value.Int(11), getGlobal(t, it, "cx"))
}

func TestFatherPrivate(t *testing.T) {
	it := New()
	mustRun(t, it, `
process child() begin frame(100) end
process parent()
begin
	spawn child()
	frame(100)
end
`)
	pp, err := it.CallProcess("parent")
	require.NoError(t, err)
	var child *process.Process
	for id := int64(1); id <= 2; id++ {
		if p := it.FindProcessByID(id); p != nil && p.Name == "child" {
			child = p
		}
	}
	require.NotNil(t, child)
	require.Equal(t, value.Int(pp.ID), privOf(t, child, "father"))
}

func TestHooksLifecycle(t *testing.T) {
	it := New()
	var events []string
	it.SetHooks(process.Hooks{
		OnCreate:  func(p *process.Process) { events = append(events, "create:"+p.Name) },
		OnStart:   func(p *process.Process) { events = append(events, "start:"+p.Name) },
		OnUpdate:  func(p *process.Process, dt float64) { events = append(events, "update:"+p.Name) },
		OnDestroy: func(p *process.Process, code int64) { events = append(events, fmt.Sprintf("destroy:%s:%d", p.Name, code)) },
		OnRender:  func(p *process.Process) { events = append(events, "render:"+p.Name) },
	})
	mustRun(t, it, `
process once()
begin
	exit(7)
	frame(100)
end
`)
	_, err := it.CallProcess("once")
	require.NoError(t, err)
	// spawn ran to the first frame yield: created, then started.
	require.Equal(t, []string{"create:once", "start:once"}, events)

	it.Render()
	require.Equal(t, "render:once", events[len(events)-1])

	events = nil
	it.Update(frameDt) // resumes, body ends, process dies, reaped same tick
	require.Equal(t, []string{"update:once", "destroy:once:7"}, events)
}

func TestIncrementalRunsShareGlobals(t *testing.T) {
	it := New()
	mustRun(t, it, `
global shared
shared = 7
`)
	mustRun(t, it, `
global out
out = shared + 1
`)
	require.Equal(t, value.Int(8), getGlobal(t, it, "out"))
}

func TestIncludeDirective(t *testing.T) {
	it := New()
	it.SetFileLoader(func(path string) ([]byte, error) {
		if path == "lib.divm" {
			return []byte(`
fn double(x) begin return x * 2 end
`), nil
		}
		return nil, fmt.Errorf("unknown include %q", path)
	})
	mustRun(t, it, `
include "lib.divm"
global r
r = double(21)
`)
	require.Equal(t, value.Int(42), getGlobal(t, it, "r"))
}

func TestCallFunctionArityChecked(t *testing.T) {
	it := New()
	mustRun(t, it, `
fn two(a, b) begin return a + b end
`)
	v, err := it.CallFunction("two", value.Int(1), value.Int(2))
	require.NoError(t, err)
	require.Equal(t, value.Int(3), v)

	_, err = it.CallFunction("two", value.Int(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ArgumentError")
}

func TestSetGlobalByName(t *testing.T) {
	it := New()
	mustRun(t, it, `global g`)
	require.True(t, it.SetGlobalByName("g", value.Int(99)))
	require.Equal(t, value.Int(99), getGlobal(t, it, "g"))
	require.False(t, it.SetGlobalByName("nope", value.Nil))
}

func TestStringInterning(t *testing.T) {
	it := New()
	mustRun(t, it, `
global a, b, eq
a = "he" + "llo"
b = "hello"
eq = a == b
`)
	a, b := getGlobal(t, it, "a"), getGlobal(t, it, "b")
	require.Same(t, a.AsString(), b.AsString(), "equal strings share identity")
	require.Equal(t, value.Bool(true), getGlobal(t, it, "eq"))
}

func TestThrowAndCatchValue(t *testing.T) {
	it := New()
	mustRun(t, it, `
global caught, kind
try
begin
	throw 123
end
catch (e)
begin
	caught = e.value
	kind = e.kind
end
`)
	require.Equal(t, value.Int(123), getGlobal(t, it, "caught"))
	require.Equal(t, "ScriptError", getGlobal(t, it, "kind").AsString().String())
}

func TestWaitAtToplevelFails(t *testing.T) {
	it := New()
	err := it.Run("test.divm", []byte(`wait(10)`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "suspended outside of a process")
}
