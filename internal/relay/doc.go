// Package relay implements the broadcast core of the news relay: the
// connection registry, the best-effort fan-out broadcaster, the
// per-connection session state machine and the shutdown coordinator.
//
// The Registry is the only shared mutable structure. Every component reads
// it through Snapshot and mutates it through Add, Remove and Clear.
package relay
