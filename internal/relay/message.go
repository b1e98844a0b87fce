package relay

import "fmt"

// Texts exchanged with clients.
const (
	PingText         = "ping"
	PongText         = "pong"
	JoinNotice       = "Someone joined."
	DisconnectNotice = "Someone disconnected."
	newsPrefix       = "NEWS: "
)

// RelayText formats a client's text for broadcast, tagged with its sender.
func RelayText(senderID, text string) string {
	return fmt.Sprintf("Client %s: %s", senderID, text)
}

// NewsText formats a published news item for broadcast.
func NewsText(news string) string {
	return newsPrefix + news
}
