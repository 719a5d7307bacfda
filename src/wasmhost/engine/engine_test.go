package engine

import "testing"

func TestMemoryPages_RoundsUpPartialPage(t *testing.T) {
	if got := MemoryPages(524288); got != 8 {
		t.Fatalf("expected 8 pages for exactly 512KiB, got %d", got)
	}
	if got := MemoryPages(524289); got != 9 {
		t.Fatalf("expected rounding up to 9 pages, got %d", got)
	}
	if got := MemoryPages(0); got != 0 {
		t.Fatalf("expected 0 pages for 0 bytes, got %d", got)
	}
}
