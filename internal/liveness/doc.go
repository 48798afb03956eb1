// Package liveness implements the single-instance guard: a flag per
// identity in a shared flagstore.Store whose presence means "an instance is
// running". Acquire is a set-if-absent so two concurrent starts cannot both
// win, and removing the flag from outside is the cooperative stop request
// observed by the run loop.
package liveness
