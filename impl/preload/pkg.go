// Package preload schedules the loading of a catalog of resources. Callers add items to a
// Preloader, optionally tagged with a scene and/or weight, and then start loads that select
// the whole catalog or a subset of it by weight or scene. Each load reports progress as its
// resources become available and completes exactly once when all of them are.
//
// The underlying fetches are delegated to a registry that fetches each identifier at most
// once, no matter how many loads (or Preloaders) are interested in it. All progress and
// completion notifications, and the settling of Load handles, happen on a single dispatcher
// goroutine owned by the Preloader. Therefore callbacks for any one Preloader never run
// concurrently with each other and a load's progress values never go backwards.
//
// A failed or stalled fetch leaves every load that selected the resource incomplete. Use
// Load.Wait with a context deadline to stop waiting on such a load.
package preload
