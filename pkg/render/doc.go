// Package render prints a locked dependency graph.
//
// Every renderer works from a [lockfile.Lockfile], so `gallade tree` never
// needs the network once a fresh lockfile exists. Output is deterministic:
// entries and edges follow the lockfile's canonical order.
//
// # Formats
//
//   - [FormatText]: an indented tree rooted at the direct dependencies.
//     A subtree already printed is abbreviated with "(*)".
//   - [FormatJSON]: nodes and edges, suitable for other tools.
//   - [FormatDOT]: Graphviz source.
//   - [FormatSVG]: the DOT graph laid out in-process with
//     [github.com/goccy/go-graphviz].
//
// Use [Render] to dispatch on a format name:
//
//	f, err := render.ParseFormat("dot")
//	err = render.Render(ctx, os.Stdout, lf, f)
//
// [lockfile.Lockfile]: github.com/matzehuels/gallade/pkg/lockfile
package render
