// Package clock abstracts wall-clock reads and sleeps so the daemon run loop
// can be driven deterministically in tests.
package clock
