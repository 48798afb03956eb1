// Package flagstore provides the shared key-value register that holds
// liveness flags.
//
// Three backends implement Store. Memory is process-local and suits tests
// and single-process embedding. SQLite and Dir can be shared by several
// processes on one host; both make SetIfAbsent atomic across processes, the
// former through a primary key constraint and the latter through an advisory
// file lock. Values never expire on their own.
package flagstore
