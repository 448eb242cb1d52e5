// Package relay shares one graph between many pairchat clients.
//
// The relay is a dumb store: it never sees plaintext and makes no ordering
// promises beyond what its graph does. Server exposes a graph over HTTP and
// a websocket; Client implements domain.Store on top of it so controllers
// cannot tell a remote graph from a local one.
//
// HTTP API
//
//	POST /v1/put   {"path": [...], "value": ...}
//	    Merge value into path. Answers 204.
//
//	POST /v1/once  {"path": [...]}
//	    Answer {"value": ...} with the current value, null when empty.
//
//	GET  /v1/subscribe
//	    Websocket. The client sends {"op": "on"|"map"|"off", "id": N,
//	    "path": [...]}; the server answers every delivery with
//	    {"id": N, "key": "...", "value": ...}. Subscriptions replay the
//	    current value (or every child, for "map") first.
//
//	GET  /healthz
//
// Client re-sends every live subscription after a reconnect, which replays
// current values; consumers are idempotent under redelivery anyway.
package relay
