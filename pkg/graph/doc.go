// Package graph builds the candidate dependency graph of a set of direct
// dependencies.
//
// The [Builder] walks the graph breadth-first, one depth level at a time.
// Within a level, version resolution and descriptor fetches run in parallel
// (bounded by [Options.Workers]); results are then applied in the order the
// dependencies were discovered, so the same inputs always produce the same
// graph regardless of network timing.
//
// The result is a [Graph] of candidates: several versions of the same
// library may appear, one [Node] per concrete coordinate. Picking one
// version per library is the job of package conflict.
//
// # Propagation rules
//
// Transitive dependencies declared with scope test, provided, system or
// import are not followed, and neither are optional ones. Exclusions
// accumulate along each path. A coordinate is expanded once, the first
// time it is reached; later paths only add an edge.
//
// # Cycles
//
// A dependency whose group and artifact already appear on the path that
// reached it fails the build with CYCLE_DETECTED. Cycles closed through
// memoized nodes are caught by a depth-first search once the walk finishes;
// see [FindCycle].
package graph
