package ref

import "errors"

// Errors returned by reference parsing and resolution.
//
// Check with errors.Is:
//
//	if errors.Is(err, ref.ErrInvalidReference) {
//	    // malformed or unsafe URI; never retried
//	}
var (
	// ErrInvalidReference is returned for malformed or unsafe URIs and
	// paths. Operations failing with it are never retried.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrPathEscape is returned when a joined filesystem path would
	// escape its intended base directory.
	ErrPathEscape = errors.New("path escapes base directory")

	// ErrNoContext is returned when resolution requires a project
	// context but none could be detected.
	ErrNoContext = errors.New("no project context available")
)
