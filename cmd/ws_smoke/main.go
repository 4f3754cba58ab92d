package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"

	"hidden_mines/internal/service"
)

// ws_smoke plays one game against a server running the in-process oracle
// and prints every event received on the websocket. Expects JWT_SECRET.
func main() {
	base := flag.String("addr", "127.0.0.1:8080", "server host:port")
	cells := flag.String("cells", "1,2,3", "comma-separated cells to reveal")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	token, err := service.GenerateJWT(crypto.PubkeyToAddress(key.PublicKey))
	if err != nil {
		log.Fatalf("gen token: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws?token=%s", *base, token), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			log.Printf("ws: %s", msg)
		}
	}()

	api := client{base: "http://" + *base, token: token}

	var game struct {
		ID uint64 `json:"id"`
	}
	api.call("POST", "/api/v1/games", nil, &game)
	log.Printf("started game %d", game.ID)

	for _, s := range strings.Split(*cells, ",") {
		var cell int
		if _, err := fmt.Sscan(strings.TrimSpace(s), &cell); err != nil {
			log.Fatalf("invalid cell %q", s)
		}

		var req struct {
			Handle string `json:"handle"`
		}
		api.call("POST", "/api/v1/reveal", map[string]interface{}{"game_id": game.ID, "cell": cell}, &req)

		var d struct {
			Cleartext bool   `json:"cleartext"`
			Proof     string `json:"proof"`
		}
		api.call("GET", "/oracle/disclose/"+req.Handle, nil, &d)

		var out map[string]interface{}
		api.call("POST", "/api/v1/reveal/complete", map[string]interface{}{"cleartext": d.Cleartext, "proof": d.Proof}, &out)
		log.Printf("cell %d: %v", cell, out)
		if finished, _ := out["finished"].(bool); finished {
			break
		}
	}

	time.Sleep(500 * time.Millisecond)
}

type client struct {
	base  string
	token string
}

func (c client) call(method, path string, body, out interface{}) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		var e map[string]interface{}
		_ = json.NewDecoder(res.Body).Decode(&e)
		log.Fatalf("%s %s: %s %v", method, path, res.Status, e)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
}
