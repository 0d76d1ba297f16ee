package debug

import (
	"path/filepath"
	"testing"
)

func TestBreakpointsAddLine(t *testing.T) {
	bps := NewBreakpoints()

	plain := bps.AddLine("main.go", 10, "", "")
	if plain.Kind != BreakLine {
		t.Errorf("Kind = %v, want %v", plain.Kind, BreakLine)
	}
	if !plain.Enabled {
		t.Error("new breakpoints should be enabled")
	}

	cond := bps.AddLine("main.go", 20, "i > 5", "")
	if cond.Kind != BreakConditional {
		t.Errorf("Kind = %v, want %v", cond.Kind, BreakConditional)
	}

	log := bps.AddLine("main.go", 30, "", "hit {x}")
	if log.Kind != BreakLogPoint {
		t.Errorf("Kind = %v, want %v", log.Kind, BreakLogPoint)
	}

	if plain.ID == cond.ID || cond.ID == log.ID {
		t.Error("IDs should be unique")
	}
}

func TestBreakpointsToggle(t *testing.T) {
	bps := NewBreakpoints()

	bp, added := bps.Toggle("main.go", 10)
	if !added {
		t.Fatal("first toggle should add")
	}

	_, added = bps.Toggle("main.go", 10)
	if added {
		t.Fatal("second toggle should remove")
	}
	if _, ok := bps.Get(bp.ID); ok {
		t.Error("breakpoint should be gone after toggle off")
	}
	if _, ok := bps.At("main.go", 10); ok {
		t.Error("At() should not find removed breakpoint")
	}
}

func TestBreakpointsRemove(t *testing.T) {
	bps := NewBreakpoints()
	bp := bps.AddLine("main.go", 10, "", "")

	if err := bps.Remove(bp.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := bps.Remove(bp.ID); err == nil {
		t.Error("removing twice should fail")
	}
	if len(bps.Paths()) != 0 {
		t.Errorf("Paths() = %v, want empty", bps.Paths())
	}
}

func TestBreakpointsForPathSorted(t *testing.T) {
	bps := NewBreakpoints()
	bps.AddLine("main.go", 30, "", "")
	bps.AddLine("main.go", 10, "", "")
	bps.AddLine("other.go", 5, "", "")
	bps.AddLine("main.go", 20, "", "")

	got := bps.ForPath("main.go")
	if len(got) != 3 {
		t.Fatalf("ForPath() returned %d breakpoints, want 3", len(got))
	}
	for i, want := range []int{10, 20, 30} {
		if got[i].Line != want {
			t.Errorf("ForPath()[%d].Line = %d, want %d", i, got[i].Line, want)
		}
	}
}

func TestBreakpointsSetEnabled(t *testing.T) {
	bps := NewBreakpoints()
	bp := bps.AddLine("main.go", 10, "", "")

	if err := bps.SetEnabled(bp.ID, false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	got, _ := bps.Get(bp.ID)
	if got.Enabled {
		t.Error("breakpoint should be disabled")
	}

	if err := bps.SetEnabled(999, true); err == nil {
		t.Error("SetEnabled() on unknown ID should fail")
	}
}

func TestBreakpointsFunction(t *testing.T) {
	bps := NewBreakpoints()
	bp := bps.AddFunction("main.main", "")
	if bp.Kind != BreakFunction {
		t.Errorf("Kind = %v, want %v", bp.Kind, BreakFunction)
	}

	all := bps.All()
	if len(all) != 1 {
		t.Fatalf("All() returned %d, want 1", len(all))
	}

	if err := bps.Remove(bp.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(bps.All()) != 0 {
		t.Error("function breakpoint should be removable")
	}
}

func TestBreakpointsSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "breakpoints.json")

	bps := NewBreakpoints()
	bps.SetPersistPath(path)
	bps.AddLine("main.go", 10, "", "")
	bps.AddLine("main.go", 20, "i > 5", "")
	bps.AddFunction("main.main", "")

	if err := bps.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewBreakpoints()
	loaded.SetPersistPath(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(loaded.All()) != 3 {
		t.Fatalf("loaded %d breakpoints, want 3", len(loaded.All()))
	}
	if len(loaded.ForPath("main.go")) != 2 {
		t.Errorf("loaded %d line breakpoints, want 2", len(loaded.ForPath("main.go")))
	}

	// IDs keep counting past the loaded set.
	bp := loaded.AddLine("main.go", 30, "", "")
	if bp.ID <= 3 {
		t.Errorf("new ID = %d, should be past loaded IDs", bp.ID)
	}
}

func TestBreakpointsLoadMissingFile(t *testing.T) {
	bps := NewBreakpoints()
	bps.SetPersistPath(filepath.Join(t.TempDir(), "absent.json"))

	if err := bps.Load(); err != nil {
		t.Fatalf("Load() of missing file should be nil, got %v", err)
	}
	if len(bps.All()) != 0 {
		t.Error("missing file should leave the set empty")
	}
}

func TestBreakpointsClear(t *testing.T) {
	bps := NewBreakpoints()
	bps.AddLine("main.go", 10, "", "")
	bps.AddFunction("main.main", "")

	bps.Clear()
	if len(bps.All()) != 0 {
		t.Error("Clear() should remove everything")
	}
}
