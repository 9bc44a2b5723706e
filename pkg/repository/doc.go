// Package repository talks to remote Maven2-layout repositories.
//
// A [Client] serves one repository base URL. It knows the layout:
//
//	{base}/{group path}/{artifact}/maven-metadata.xml          version listing
//	{base}/{group path}/{artifact}/{v}/{artifact}-{v}.pom      descriptor
//	{base}/{group path}/{artifact}/{v}/{artifact}-{v}[-{c}].{ext}   artifact
//	... plus ".sha256" / ".sha1" sidecars next to any file
//
// Every request goes through a rate limiter (golang.org/x/time/rate), the
// observability HTTP hooks, and [httputil.Policy] retries for transient
// failures. Version listings and descriptors are stored in a [cache.Cache]
// between runs.
//
// A [Set] tries several clients in order, the way a build tool consults a
// list of configured repositories.
//
// # Errors
//
// Exported methods return coded errors from package errors:
// NOT_FOUND when the repository has no record, NETWORK_ERROR once retries are
// exhausted, and UNRESOLVED_COORDINATE for responses that cannot be parsed.
// The sentinels [ErrNotFound] and [ErrNetwork] remain reachable through
// errors.Is from the standard library.
package repository
