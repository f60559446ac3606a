package grammar

import (
	"os"
	"testing"

	"golang.org/x/exp/ebnf"
)

// TestEBNF validates that the grammar documentation in grammar.ebnf is
// well-formed and that every production reachable from Chunk is defined.
func TestEBNF(t *testing.T) {
	f, err := os.Open("grammar.ebnf")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	g, err := ebnf.Parse("grammar.ebnf", f)
	if err != nil {
		t.Fatal(err)
	}
	if err := ebnf.Verify(g, "Chunk"); err != nil {
		t.Fatal(err)
	}
}
