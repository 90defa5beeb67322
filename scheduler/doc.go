// Package scheduler fires trigger boundaries into the executor.
//
// Tick evaluates every activated trigger against the time of the previous
// evaluation and starts at most one run per trigger: the latest boundary
// crossed. Missed boundaries are never backfilled, and a trigger seen for
// the first time fires only when its latest boundary is younger than one
// tick. A boundary that already has a run in history is suppressed.
//
// Failed tumbling-window runs are retried with the same scheduled time and
// an increasing attempt number, independently of later windows.
package scheduler
