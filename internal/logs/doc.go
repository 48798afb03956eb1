// Package logs reads daemon sink files for the CLI: the last N entries and a
// polling follow mode that survives the rewrite performed by pruning.
package logs
