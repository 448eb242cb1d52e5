// Package eventloop provides the single-threaded cooperative executor the
// chat controllers run on.
//
// Store callbacks, timers and the completions of off-loop work are all posted
// onto one Loop and run one at a time, so controller state needs no locks.
// What the loop does not give is ordering between a continuation and a
// resubscription that happened while it was queued; controllers handle that
// with generation counters.
package eventloop
