// Package registry is the process-wide table of fetched resources. It guarantees that
// the underlying fetch for a resource identifier is started at most once for the lifetime
// of a Registry, no matter how many callers register interest in it, and it fans out
// a completion callback to every interested caller - including callers that register
// after the fetch has already completed.
//
// A fetch that fails or never returns leaves its callbacks pending forever. There is no
// retry: the failure is logged and recorded so it can be reported via Status, but nothing
// that registered interest in the identifier is ever called back.
package registry
