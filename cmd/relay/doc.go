// Package main runs the pairchat relay: one shared graph served to many
// clients over HTTP and a websocket (see package internal/relay for the API).
//
// Behaviour
//
//   - State lives in memory. With --journal every written node is also kept
//     in a bbolt file and restored on the next start; without it, state is
//     lost on exit.
//   - A lightweight access log records method, path, remote, status, bytes and
//     duration for each request at debug level.
//   - The default listen address is :8080.
//   - SIGINT or SIGTERM drains in-flight requests before exiting.
//
// The relay never sees plaintext or private keys; it only stores ciphertext,
// session pointers and presence heartbeats.
package main
