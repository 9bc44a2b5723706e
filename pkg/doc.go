// Package pkg provides the core libraries of gallade, a Maven dependency
// resolver.
//
// # Overview
//
// Gallade reads the dependencies a project declares in gallade.toml,
// resolves the full transitive graph against Maven repositories, records the
// outcome in gallade.lock and installs the locked artifacts into a
// content-addressed cache. The pkg directory is organized into four areas:
//
//  1. Model - coordinates, versions and checksums ([coord], [version], [checksum])
//  2. Resolution - descriptors, graph and conflicts ([metadata], [graph], [conflict])
//  3. Persistence - manifest, lockfile and artifact store ([manifest], [lockfile], [store])
//  4. Orchestration - [pipeline] wires everything for the CLI
//
// # Architecture
//
// The data flow of "gallade install":
//
//	gallade.toml
//	     ↓
//	[manifest] (declared dependencies and pins)
//	     ↓
//	[graph] builder ← [metadata] ← [repository] ← [cache]
//	     ↓
//	[conflict] (one version per group:artifact)
//	     ↓
//	[lockfile] (gallade.lock)
//	     ↓
//	[store] (download, verify, cache)
//
// # Quick Start
//
// Lock and install a project:
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	defer runner.Close()
//
//	res, err := runner.Install(ctx, pipeline.Options{ManifestPath: "gallade.toml"})
//	if err != nil {
//	    os.Exit(errors.ExitCode(err))
//	}
//	fmt.Println(res.Diff)
//
// Explain a version decision:
//
//	res, _ := runner.Resolve(ctx, opts)
//	e, _ := res.Resolution.Why(coord.Key{Group: "org.slf4j", Artifact: "slf4j-api"})
//	fmt.Print(e)
//
// # Main Packages
//
// [errors] - Coded errors and their exit codes.
//
// [httputil] - Retry policy for transient network failures.
//
// [repository] - Maven2 layout client: version listings, descriptors,
// artifacts and checksum sidecars, with response caching and rate limiting.
//
// [cache] - Response caches: null, file and Redis.
//
// [observability] - Hooks for resolution, store, cache and HTTP events;
// [metrics] exports them through Prometheus.
//
// [render] - Text, JSON, DOT and SVG views of a lockfile.
//
// [classpath] - Classpaths from a lockfile and the store.
//
// [buildinfo] - Version information stamped at build time.
//
// [coord]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/coord
// [version]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/version
// [checksum]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/checksum
// [metadata]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/metadata
// [graph]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/graph
// [conflict]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/conflict
// [manifest]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/manifest
// [lockfile]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/lockfile
// [store]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/store
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/pipeline
// [repository]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/repository
// [cache]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/observability
// [metrics]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/observability/metrics
// [render]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/render
// [classpath]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/classpath
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/gallade/pkg/buildinfo
package pkg
