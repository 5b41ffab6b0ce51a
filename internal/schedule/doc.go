// Package schedule runs periodic maintenance jobs (cron or interval) on
// github.com/robfig/cron/v3.
//
// A job runs on the cron goroutine with its own timeout. A trigger that fires
// while the previous run of the same job is still in flight is skipped.
package schedule
