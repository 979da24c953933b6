package syncer

import "sort"

// PlanOptions tune plan computation.
type PlanOptions struct {
	// Force plans conflicted files anyway, source winning.
	Force bool

	// Prune emits delete operations for files present only in the
	// target. to-codex syncs always prune; from-codex only when the
	// caller opts in.
	Prune bool

	// Source and Target label the plan for reporting.
	Source string
	Target string
}

// CreatePlan diffs a source listing against a target listing and
// classifies every path:
//
//   - source only: create
//   - target only: delete (when pruning is authorized)
//   - both, hashes differ: update
//   - both, identical: skipped
//
// A file conflicts when the manifest's last-synced hash disagrees with
// both current hashes: both sides changed independently since the last
// successful sync. Conflicts are reported, never auto-resolved; they block
// the file from the plan unless Force is set, in which case source wins.
//
// The computation is pure: it mutates no store and performs no I/O.
func CreatePlan(source, target Listing, manifest *Manifest, opts PlanOptions) *Plan {
	plan := &Plan{
		Source:    opts.Source,
		Target:    opts.Target,
		Files:     []PlanFile{},
		Conflicts: []string{},
		Skipped:   []string{},
	}

	paths := unionPaths(source, target)

	for _, path := range paths {
		src, inSource := source[path]
		tgt, inTarget := target[path]

		switch {
		case inSource && !inTarget:
			plan.Files = append(plan.Files, PlanFile{Path: path, Operation: OpCreate, Size: src.Size})

		case !inSource && inTarget:
			if !opts.Prune {
				plan.Skipped = append(plan.Skipped, path)
				continue
			}
			if isConflict(manifest, path, "", tgt.Hash) {
				plan.Conflicts = append(plan.Conflicts, path)
				if !opts.Force {
					continue
				}
			}
			plan.Files = append(plan.Files, PlanFile{Path: path, Operation: OpDelete, Size: tgt.Size})

		default:
			if src.Hash == tgt.Hash {
				plan.Skipped = append(plan.Skipped, path)
				continue
			}
			if isConflict(manifest, path, src.Hash, tgt.Hash) {
				plan.Conflicts = append(plan.Conflicts, path)
				if !opts.Force {
					continue
				}
			}
			plan.Files = append(plan.Files, PlanFile{Path: path, Operation: OpUpdate, Size: src.Size})
		}
	}

	for _, f := range plan.Files {
		plan.TotalFiles++
		plan.TotalBytes += f.Size
	}
	plan.EstimatedTimeMs = estimate(plan.TotalFiles, plan.TotalBytes)
	return plan
}

// isConflict reports whether both sides changed independently since the
// last successful sync: the manifest hash exists and disagrees with both
// current hashes. srcHash may be empty for a source-side deletion.
func isConflict(manifest *Manifest, path, srcHash, tgtHash string) bool {
	if manifest == nil {
		return false
	}
	last := manifest.LastHash(path)
	if last == "" {
		return false
	}
	return last != srcHash && last != tgtHash
}

func unionPaths(source, target Listing) []string {
	seen := make(map[string]bool, len(source)+len(target))
	for p := range source {
		seen[p] = true
	}
	for p := range target {
		seen[p] = true
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
