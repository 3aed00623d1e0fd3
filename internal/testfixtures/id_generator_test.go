package testfixtures

import (
	"slices"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("emp")

	first := gen.Next()
	second := gen.NextFunc()()

	if first != "emp-1" || second != "emp-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if issued := gen.Issued(); !slices.Equal(issued, []string{"emp-1", "emp-2"}) {
		t.Fatalf("unexpected issued list: %v", issued)
	}
}

func TestIDGeneratorReset(t *testing.T) {
	gen := NewIDGenerator("")
	_ = gen.Next()
	gen.Reset()

	if next := gen.Next(); next != "id-1" {
		t.Fatalf("expected id-1 after reset, got %q", next)
	}
	if len(gen.Issued()) != 1 {
		t.Fatalf("expected reset to clear history, got %v", gen.Issued())
	}
}
