// Package supervise is the external periodic trigger for tickd daemons: a
// cron schedule that starts `tickd run` for an identity whenever no instance
// holds its liveness flag. Paired with the daemon's lifetime cap this keeps
// one worker alive with at most one schedule interval of downtime.
package supervise
