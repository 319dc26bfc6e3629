package engine

import (
	"github.com/Pudrick/Souffle-mod/eval"
	"github.com/Pudrick/Souffle-mod/relation"
)

// Config configures one Engine run. spec.md §1 places configuration
// parsing itself out of scope ("the CLI, configuration parsing ... are
// external collaborators"), so this repository does not read flags or
// files: the caller builds a Config directly, the way an embedding
// program would.
type Config struct {
	// Threads is the worker-thread count spec.md §3 says an Engine is
	// constructed from. Zero means "default to GOMAXPROCS after
	// applying the container-aware automaxprocs adjustment" (spec.md §6
	// "in verbose mode ... in profile mode ...", ambient thread-count
	// defaulting grounded on the teacher's automaxprocs usage).
	Threads int

	// Verbose enables hook logging on the installed signal handler
	// (spec.md §6 "in verbose mode, hook logging is enabled").
	Verbose bool

	// Profile enables the metrics-backed profile.EventSink instead of
	// profile.NoOp() (spec.md §6 "in profile mode, profiling is
	// enabled").
	Profile bool

	// ProfileOutputFile, if non-empty, is passed to
	// profile.EventSink.SetOutputFile once profiling is enabled.
	ProfileOutputFile string

	// IO is the Reader/Writer collaborator IO nodes dispatch through
	// (spec.md §6). May be nil if the program contains no IO nodes.
	IO eval.IOProvider

	// RelationProvider, if non-nil, is tried before the default
	// relation representation for every declared relation (spec.md §9
	// Open Question, resolved per SPEC_FULL.md option (b)).
	RelationProvider relation.Provider

	// RegexCacheSize bounds the compiled-pattern LRU cache. Zero uses
	// regexcache's own default.
	RegexCacheSize int
}
