package syncer

import (
	"testing"
	"time"
)

func record(path, hash string, size int64) FileRecord {
	return FileRecord{Path: path, Size: size, Hash: hash}
}

func manifestWith(t *testing.T, hashes map[string]string) *Manifest {
	t.Helper()
	m, err := LoadManifest(t.TempDir(), "codex", ToCodex)
	if err != nil {
		t.Fatal(err)
	}
	for path, hash := range hashes {
		m.Record(path, hash, time.Now())
	}
	return m
}

func operations(plan *Plan) map[string]Operation {
	ops := make(map[string]Operation, len(plan.Files))
	for _, f := range plan.Files {
		ops[f.Path] = f.Operation
	}
	return ops
}

func TestCreatePlanClassifiesOperations(t *testing.T) {
	source := Listing{
		"new.md":       record("new.md", "h-new", 10),
		"changed.md":   record("changed.md", "h-src", 20),
		"unchanged.md": record("unchanged.md", "h-same", 30),
	}
	target := Listing{
		"changed.md":   record("changed.md", "h-old", 20),
		"unchanged.md": record("unchanged.md", "h-same", 30),
		"removed.md":   record("removed.md", "h-gone", 40),
	}
	manifest := manifestWith(t, map[string]string{
		"changed.md": "h-old",  // only source changed
		"removed.md": "h-gone", // only source changed (deleted)
	})

	plan := CreatePlan(source, target, manifest, PlanOptions{Prune: true})

	ops := operations(plan)
	if ops["new.md"] != OpCreate {
		t.Errorf("new.md = %q, want create", ops["new.md"])
	}
	if ops["changed.md"] != OpUpdate {
		t.Errorf("changed.md = %q, want update", ops["changed.md"])
	}
	if ops["removed.md"] != OpDelete {
		t.Errorf("removed.md = %q, want delete", ops["removed.md"])
	}
	if len(plan.Skipped) != 1 || plan.Skipped[0] != "unchanged.md" {
		t.Errorf("Skipped = %v, want [unchanged.md]", plan.Skipped)
	}
	if len(plan.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", plan.Conflicts)
	}
	if plan.TotalFiles != 3 {
		t.Errorf("TotalFiles = %d, want 3", plan.TotalFiles)
	}
	if plan.TotalBytes != 10+20+40 {
		t.Errorf("TotalBytes = %d, want 70", plan.TotalBytes)
	}
}

// A file conflicts only when the manifest hash disagrees with both sides.
func TestConflictDetection(t *testing.T) {
	tests := []struct {
		name     string
		last     string // manifest hash, "" = never synced
		src, tgt string
		conflict bool
	}{
		{"never synced", "", "h1", "h2", false},
		{"only source changed", "h0", "h1", "h0", false},
		{"only target changed", "h0", "h0", "h2", false},
		{"both changed", "h0", "h1", "h2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashes := map[string]string{}
			if tt.last != "" {
				hashes["file.md"] = tt.last
			}
			manifest := manifestWith(t, hashes)

			source := Listing{"file.md": record("file.md", tt.src, 1)}
			target := Listing{"file.md": record("file.md", tt.tgt, 1)}

			plan := CreatePlan(source, target, manifest, PlanOptions{Prune: true})

			gotConflict := len(plan.Conflicts) == 1
			if gotConflict != tt.conflict {
				t.Errorf("conflict = %v, want %v (plan: %+v)", gotConflict, tt.conflict, plan)
			}
			if tt.conflict && len(plan.Files) != 0 {
				t.Errorf("conflicted file still planned: %v", plan.Files)
			}
		})
	}
}

func TestForcePlansConflictsSourceWins(t *testing.T) {
	manifest := manifestWith(t, map[string]string{"file.md": "h0"})
	source := Listing{"file.md": record("file.md", "h1", 5)}
	target := Listing{"file.md": record("file.md", "h2", 5)}

	plan := CreatePlan(source, target, manifest, PlanOptions{Prune: true, Force: true})

	if len(plan.Conflicts) != 1 {
		t.Errorf("Conflicts = %v, want the conflict still reported", plan.Conflicts)
	}
	ops := operations(plan)
	if ops["file.md"] != OpUpdate {
		t.Errorf("file.md = %q, want update under force", ops["file.md"])
	}
}

func TestDeleteRequiresPrune(t *testing.T) {
	manifest := manifestWith(t, map[string]string{"gone.md": "h0"})
	source := Listing{}
	target := Listing{"gone.md": record("gone.md", "h0", 5)}

	plan := CreatePlan(source, target, manifest, PlanOptions{Prune: false})
	if len(plan.Files) != 0 {
		t.Errorf("Files = %v, want no deletes without prune", plan.Files)
	}
	if len(plan.Skipped) != 1 {
		t.Errorf("Skipped = %v, want [gone.md]", plan.Skipped)
	}

	plan = CreatePlan(source, target, manifest, PlanOptions{Prune: true})
	if ops := operations(plan); ops["gone.md"] != OpDelete {
		t.Errorf("gone.md = %q, want delete with prune", ops["gone.md"])
	}
}

// Deleting a file the other side modified since the last sync is a
// conflict, not a silent delete.
func TestDeleteConflictsWhenTargetChanged(t *testing.T) {
	manifest := manifestWith(t, map[string]string{"gone.md": "h0"})
	source := Listing{}
	target := Listing{"gone.md": record("gone.md", "h2", 5)}

	plan := CreatePlan(source, target, manifest, PlanOptions{Prune: true})
	if len(plan.Conflicts) != 1 || plan.Conflicts[0] != "gone.md" {
		t.Errorf("Conflicts = %v, want [gone.md]", plan.Conflicts)
	}
	if len(plan.Files) != 0 {
		t.Errorf("Files = %v, want none", plan.Files)
	}

	// Force plans the delete but still reports the conflict, same as for
	// updates.
	forced := CreatePlan(source, target, manifest, PlanOptions{Prune: true, Force: true})
	if len(forced.Conflicts) != 1 || forced.Conflicts[0] != "gone.md" {
		t.Errorf("forced Conflicts = %v, want [gone.md]", forced.Conflicts)
	}
	if len(forced.Files) != 1 || forced.Files[0].Operation != OpDelete {
		t.Errorf("forced Files = %v, want one delete", forced.Files)
	}
}

// Planning the same inputs twice yields the same plan, and planning after
// a hypothetical execution yields an empty one.
func TestPlanIdempotence(t *testing.T) {
	manifest := manifestWith(t, nil)
	source := Listing{
		"a.md": record("a.md", "h-a", 1),
		"b.md": record("b.md", "h-b", 2),
	}
	target := Listing{"b.md": record("b.md", "h-old", 2)}

	first := CreatePlan(source, target, manifest, PlanOptions{Prune: true})
	second := CreatePlan(source, target, manifest, PlanOptions{Prune: true})

	if len(first.Files) != len(second.Files) {
		t.Fatalf("plans differ: %d vs %d files", len(first.Files), len(second.Files))
	}
	for i := range first.Files {
		if first.Files[i] != second.Files[i] {
			t.Errorf("file %d differs: %+v vs %+v", i, first.Files[i], second.Files[i])
		}
	}

	// Simulate execution: target now mirrors source.
	synced := Listing{}
	for p, r := range source {
		synced[p] = r
	}
	after := CreatePlan(source, synced, manifest, PlanOptions{Prune: true})
	if len(after.Files) != 0 {
		t.Errorf("plan after sync = %v, want empty", after.Files)
	}
	if len(after.Skipped) != len(source) {
		t.Errorf("Skipped = %v, want all files", after.Skipped)
	}
}

func TestPlanIsDeterministicallyOrdered(t *testing.T) {
	manifest := manifestWith(t, nil)
	source := Listing{
		"z.md": record("z.md", "hz", 1),
		"a.md": record("a.md", "ha", 1),
		"m.md": record("m.md", "hm", 1),
	}

	plan := CreatePlan(source, Listing{}, manifest, PlanOptions{Prune: true})
	want := []string{"a.md", "m.md", "z.md"}
	for i, f := range plan.Files {
		if f.Path != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, f.Path, want[i])
		}
	}
}

func TestEstimate(t *testing.T) {
	// 3 files at 20ms each plus 200KiB of payload at 100KiB/ms.
	got := estimate(3, 200*1024)
	if got != 3*20+2 {
		t.Errorf("estimate = %d, want 62", got)
	}
}
