// Package syncer computes and executes sync plans between a local project
// tree and the central knowledge repository.
//
// A sync invocation moves through a small state machine: Planning, then
// Executing (or Aborted), and for to-codex syncs a Committing and Pushing
// tail. Terminal states are Done, Failed, and NoChanges. Plans are pure
// computation results; nothing mutates until a prepared plan is executed.
package syncer

import "time"

// Direction of a sync invocation.
type Direction string

const (
	// ToCodex pushes local files into the knowledge repository.
	ToCodex Direction = "to-codex"

	// FromCodex pulls knowledge-repository files into the local tree.
	FromCodex Direction = "from-codex"

	// Bidirectional runs from-codex then to-codex.
	Bidirectional Direction = "bidirectional"
)

// Operation a planned file undergoes.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// State of a sync invocation.
type State string

const (
	StatePlanning   State = "planning"
	StateExecuting  State = "executing"
	StateCommitting State = "committing"
	StatePushing    State = "pushing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateNoChanges  State = "no-changes"
	StateAborted    State = "aborted"
)

// PlanFile is one planned file operation.
type PlanFile struct {
	Path      string    `json:"path"`
	Operation Operation `json:"operation"`
	Size      int64     `json:"size"`
}

// Plan is the computed diff between a source and target listing. It is
// immutable once computed and performs no I/O of its own.
type Plan struct {
	Source          string     `json:"source"`
	Target          string     `json:"target"`
	Files           []PlanFile `json:"files"`
	Conflicts       []string   `json:"conflicts"`
	Skipped         []string   `json:"skipped"`
	TotalFiles      int        `json:"totalFiles"`
	TotalBytes      int64      `json:"totalBytes"`
	EstimatedTimeMs int64      `json:"estimatedTimeMs"`
}

// FileError is a per-file execution failure.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result of executing a plan.
type Result struct {
	Success    bool        `json:"success"`
	Synced     int         `json:"synced"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	DurationMs int64       `json:"durationMs"`
	Errors     []FileError `json:"errors"`

	// State is the terminal state of the invocation.
	State State `json:"state"`

	// InvocationID identifies this sync run in logs.
	InvocationID string `json:"invocationId"`
}

// RoutingStats summarize a routing scan.
type RoutingStats struct {
	TotalScanned   int      `json:"totalScanned"`
	TotalMatched   int      `json:"totalMatched"`
	SourceProjects []string `json:"sourceProjects"`
	DurationMs     int64    `json:"durationMs"`
}

// RoutedFile is one knowledge-repo file routed to the current project.
type RoutedFile struct {
	// RepoPath is the path inside the knowledge repository.
	RepoPath string

	// LocalPath is the destination path inside the current project.
	LocalPath string

	// SourceProject is the project the file belongs to.
	SourceProject string

	Size int64
	Hash string
}

// RoutingScan is the result of scanning the entire knowledge repository
// for files whose frontmatter routes them into the current project.
type RoutingScan struct {
	MatchedFiles []RoutedFile `json:"matchedFiles"`
	Stats        RoutingStats `json:"stats"`
}

// estimate approximates execution time: a per-file overhead plus
// throughput on total bytes.
func estimate(files int, bytes int64) int64 {
	const perFileMs = 20
	const bytesPerMs = 100 * 1024
	return int64(files)*perFileMs + bytes/bytesPerMs
}

// nowMs is the wall-clock duration helper used in results.
func durationMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
