// Package server implements the HTTP surface of the news relay: the
// WebSocket endpoint, the POST /news ingestion endpoint, health and metrics
// endpoints, and the graceful shutdown sequence.
//
// The broadcast core lives in package relay; this package only accepts
// connections and requests and hands them to it.
package server
