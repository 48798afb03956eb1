// Package main hosts the tickd CLI.
//
// `tickd run` starts a self-terminating tick daemon for one identity and
// runs a command once per tick. `tickd list` and `tickd stop` are the
// administrative surface over the shared liveness flags, and `tickd
// supervise` relaunches a daemon on a cron schedule whenever its flag is
// absent. Configuration resolution and logger setup live here so the
// internal packages stay free of process concerns.
package main
