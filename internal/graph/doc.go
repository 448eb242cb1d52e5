// Package graph implements the shared key/value graph the chat protocol runs
// on.
//
// Memory is a single-replica graph with the same observable contract as the
// replicated store clients talk to: field-level merge on put, replay of the
// current value on every fresh subscription, and map subscriptions that
// replay every child before streaming changes. It makes no promise about
// delivering a write exactly once. The relay serves one Memory to many
// clients; a Journal (BoltJournal in production) makes it durable.
package graph
