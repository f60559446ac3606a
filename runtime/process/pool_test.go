package process

import (
	"testing"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/runtime/fiber"
	"github.com/mna/divm/runtime/value"
	"github.com/stretchr/testify/require"
)

func testDef(name string, extras ...string) *Def {
	code := &compiler.Funcode{Name: name, Code: []byte{byte(compiler.NIL), byte(compiler.RETURN)}}
	entry := &value.Function{Name: name, Code: code}
	return NewDef(name, entry, extras)
}

func TestNewDefPrivates(t *testing.T) {
	def := testDef("p", "elapsed", "ticks")
	require.Equal(t, value.NumPrivates+2, def.NumPrivates)
	require.Equal(t, value.NumPrivates, def.PrivateIndex["elapsed"])
	require.Equal(t, value.NumPrivates+1, def.PrivateIndex["ticks"])
	xi, ok := value.PrivateIndex("x")
	require.True(t, ok)
	require.Equal(t, xi, def.PrivateIndex["x"])
	for _, v := range def.InitialPrivates {
		require.Equal(t, value.Int(0), v)
	}
}

func TestPoolCreateRecycle(t *testing.T) {
	var pool Pool
	def := testDef("p")

	p := pool.Create(def)
	require.NotNil(t, p)
	require.Equal(t, 1, p.TotalFibers)
	require.Len(t, p.Privates, def.NumPrivates)
	require.Zero(t, pool.Len())

	p.ID = 7
	p.State = fiber.Running
	p.UserData = "host-data"
	p.Signal = value.Int(SigFreeze)
	p.ExitCode = 3
	gen := p.Gen

	pool.Recycle(p)
	require.Equal(t, 1, pool.Len())

	// a recycled instance passes reset-equivalent checks.
	require.Zero(t, p.ID)
	require.Equal(t, gen+1, p.Gen, "generation advances so stale references die")
	require.Equal(t, fiber.Dead, p.State)
	require.Nil(t, p.UserData)
	require.True(t, p.Signal.IsNil())
	require.Zero(t, p.ExitCode)
	require.Zero(t, p.NextFiber)
	for _, f := range p.Fibers {
		require.Equal(t, fiber.Dead, f.State)
		require.Zero(t, f.SP)
		require.Empty(t, f.Frames)
	}

	// the same record (and its fiber array) is handed back.
	p2 := pool.Create(def)
	require.Same(t, p, p2)
	require.Zero(t, pool.Len())
	require.Equal(t, value.Int(0), p2.Privates[0])
}

func TestPoolPrivatesResize(t *testing.T) {
	var pool Pool
	small := testDef("small")
	big := testDef("big", "a", "b", "c")

	p := pool.Create(small)
	pool.Recycle(p)

	p2 := pool.Create(big)
	require.Same(t, p, p2)
	require.Len(t, p2.Privates, big.NumPrivates)
}

func TestPoolShrink(t *testing.T) {
	var pool Pool
	def := testDef("p")

	procs := make([]*Process, 0, 3*MinPoolSize)
	for i := 0; i < 3*MinPoolSize; i++ {
		procs = append(procs, pool.Create(def))
	}
	for _, p := range procs {
		pool.Recycle(p)
	}
	require.Equal(t, 3*MinPoolSize, pool.Len())

	pool.Shrink()
	require.Equal(t, MinPoolSize, pool.Len())
}
