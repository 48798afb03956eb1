// Package objcache holds in-process object caches that a tick loop clears
// before each unit of work, so long-lived processes never act on stale
// objects.
package objcache
