package ws

import "hidden_mines/internal/domain"

type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// client → server
type SubscribePayload struct {
	GameID uint64 `json:"game_id"` // 0 follows every game
}

type inbound struct {
	Type string           `json:"type"`
	Data SubscribePayload `json:"data"`
}

// server → client
type ReadyPayload struct {
	Actor  domain.Actor `json:"actor"`
	GameID uint64       `json:"game_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
