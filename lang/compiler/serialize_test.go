package compiler

import (
	"testing"

	"github.com/kylelemons/godebug/diff"
	"github.com/stretchr/testify/require"
)

const roundtripSrc = `
global score, done

struct vec2
begin
	var x, y
end

class counter
begin
	var n
	fn bump(by)
	begin
		n = n + by
		return n
	end
end

fn helper(a, b)
begin
	try
	begin
		return a / b
	end
	catch (e)
	begin
		return -1
	end
end

process mover(dx)
begin
	private step_count = 0
	while (step_count < 10)
	begin
		x = x + dx
		step_count = step_count + 1
		frame(100)
	end
end

score = helper(10, 2)
spawn mover(3)
done = true
`

func TestSerializeRoundtrip(t *testing.T) {
	prog := compileSrc(t, roundtripSrc)
	data := Serialize(prog)

	got, err := Deserialize(data)
	require.NoError(t, err)

	// the disassembly covers code bytes, tables, catches, free variables and
	// stack metadata; identical output means a behaviorally identical
	// program.
	want := Disassemble(prog)
	have := Disassemble(got)
	if patch := diff.Diff(want, have); patch != "" {
		t.Fatalf("roundtrip disassembly differs:\n%s", patch)
	}

	require.Equal(t, prog.Globals, got.Globals)
	require.Equal(t, prog.Names, got.Names)
	require.Equal(t, prog.Constants, got.Constants)
	require.Equal(t, prog.Toplevel.PosTable, got.Toplevel.PosTable)
	require.Len(t, got.Processes, 1)
	require.Equal(t, prog.Processes[0].NumPrivates, got.Processes[0].NumPrivates)
	require.Equal(t, prog.Processes[0].PrivateNames, got.Processes[0].PrivateNames)
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := Deserialize([]byte("NOPE....junk"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad magic")
}

func TestDeserializeRejectsBadVersion(t *testing.T) {
	prog := compileSrc(t, `global g`)
	data := Serialize(prog)
	data[4] = 0xff // corrupt the version field
	_, err := Deserialize(data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "version")
}

func TestDeserializeRejectsTruncated(t *testing.T) {
	prog := compileSrc(t, roundtripSrc)
	data := Serialize(prog)
	_, err := Deserialize(data[:len(data)/2])
	require.Error(t, err)
}

func TestSerializeDeterministic(t *testing.T) {
	prog := compileSrc(t, `
global msg
msg = "hello"
`)
	// "msg" appears as a global name and "hello" as a constant. Serializing
	// twice yields identical bytes.
	d1 := Serialize(prog)
	d2 := Serialize(prog)
	require.Equal(t, d1, d2)
}
