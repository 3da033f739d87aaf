// Package scheduler drives one periodic job, such as the tracker sweep.
//
// A schedule is either a fixed interval ("5m", "00:05", "interval:5m") or a
// cron expression ("*/5 * * * *", "@every 5m", "cron:0 * * * *"). Runs never
// overlap: the interval delay starts after a run completes, and a cron fire
// time that passes during a run is skipped. RunNow requests an extra run
// that is folded into the same loop.
package scheduler
