// Package metadata resolves version requirements and dependency descriptors
// against remote repositories.
//
// A [Resolver] lives for one resolution run. Every version listing and
// descriptor it fetches is kept for the rest of the run, and concurrent
// requests for the same key share a single fetch (singleflight), so each
// coordinate costs at most one round-trip per run.
//
// Descriptors are returned in effective form: the parent chain is merged
// (child wins), BOMs imported through dependencyManagement are applied,
// ${...} properties are interpolated, and dependencies without a version
// take it from dependencyManagement.
package metadata
