// Package app wires application dependencies for the CLI.
//
// Config is loaded from YAML or TOML with environment overrides. NewWire
// builds the file stores, the relay client and the event loop; Unlock adds the
// identity-bound services, and Account.Conversation assembles the session,
// stream and message services for one peer.
package app
