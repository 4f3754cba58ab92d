package ws

const (
	// client - server
	MsgSubscribe = "subscribe"
	MsgPing      = "ping"

	// server - client
	MsgReady = "ready"
	MsgEvent = "event"
	MsgPong  = "pong"
	MsgError = "error"
)
