// Package commands defines the pairchat CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init                 Create the local identity
//   - whoami               Print your identity and its fingerprint
//   - contacts add         Add a contact, optionally under a local alias
//   - contacts accept      Accept a pending contact
//   - contacts block       Block a contact
//   - contacts hide        Hide or unhide a contact
//   - contacts list        List contacts and their state
//   - send                 Send one message to a contact
//   - nudge                Nudge a contact
//   - chat                 Interactive conversation with a contact
//   - presence             Publish your presence and watch your contacts'
//
// # Implementation
//
// The root command loads the config file, builds the logger and the
// dependency graph (stores, relay client, event loop) before any subcommand
// runs. Commands that touch the shared graph run inside withRuntime, which
// keeps the event loop and the relay link alive for the command's duration.
package commands
