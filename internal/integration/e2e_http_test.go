package integration

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hidden_mines/internal/attest"
	"hidden_mines/internal/auth"
	httpserver "hidden_mines/internal/http"
	"hidden_mines/internal/http/handlers"
	"hidden_mines/internal/oracle"
	"hidden_mines/internal/service"
	"hidden_mines/internal/ws"
)

const e2eDomain = "hidden-mines/e2e"

var e2eMines = []int{2, 8, 11, 17, 23}

type e2e struct {
	t      *testing.T
	srv    *httptest.Server
	oracle *oracle.Local
}

func newE2E(t *testing.T, admin common.Address) *e2e {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("e2e-secret")

	l, err := oracle.NewLocal(e2eDomain, 3)
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	v, err := attest.NewKMSVerifier(e2eDomain, l.Signers(), 2)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	engine := service.NewEngine(l, v, service.Options{})
	hub := ws.NewHub()
	engine.Subscribe(hub)

	r := gin.New()
	httpserver.RegisterRoutes(r, httpserver.Deps{
		Handler: handlers.NewHandler(engine, auth.NewAdmins(admin), service.NewWalletAuth(time.Minute), l),
		Hub:     hub,
		Version: "test",
		Limits:  httpserver.Limits{APIRequests: 1000, APIWindow: time.Minute, RevealActions: 1000, RevealWindow: time.Minute},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &e2e{t: t, srv: srv, oracle: l}
}

// call sends a JSON request and decodes the response into out, returning
// the status code.
func (e *e2e) call(method, path, token string, body, out interface{}) int {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		e.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			e.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return res.StatusCode
}

func (e *e2e) signIn(key *ecdsa.PrivateKey) string {
	e.t.Helper()
	addr := crypto.PubkeyToAddress(key.PublicKey)

	var ch struct {
		Message string `json:"message"`
	}
	if code := e.call("POST", "/api/v1/auth/challenge", "", map[string]string{"address": addr.Hex()}, &ch); code != http.StatusOK {
		e.t.Fatalf("challenge: %d", code)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), key)
	if err != nil {
		e.t.Fatalf("sign: %v", err)
	}

	var res struct {
		Token string `json:"token"`
		Actor string `json:"actor"`
	}
	body := map[string]string{"message": ch.Message, "signature": hexutil.Encode(sig)}
	if code := e.call("POST", "/api/v1/auth", "", body, &res); code != http.StatusOK {
		e.t.Fatalf("auth: %d", code)
	}
	if res.Actor != addr.Hex() {
		e.t.Fatalf("expected actor %s, got %s", addr.Hex(), res.Actor)
	}
	return res.Token
}

func (e *e2e) revealCell(token string, gameID uint64, cell int) (map[string]interface{}, int) {
	e.t.Helper()
	var req struct {
		Handle string `json:"handle"`
	}
	if code := e.call("POST", "/api/v1/reveal", token, map[string]interface{}{"game_id": gameID, "cell": cell}, &req); code != http.StatusAccepted {
		e.t.Fatalf("reveal %d: %d", cell, code)
	}

	var d oracle.Disclosure
	if code := e.call("GET", "/oracle/disclose/"+req.Handle, "", nil, &d); code != http.StatusOK {
		e.t.Fatalf("disclose %d: %d", cell, code)
	}

	var out map[string]interface{}
	code := e.call("POST", "/api/v1/reveal/complete", token, map[string]interface{}{
		"cleartext": d.Cleartext,
		"proof":     hexutil.Encode(d.Proof),
	}, &out)
	return out, code
}

func isE2EMine(cell int) bool {
	for _, m := range e2eMines {
		if m == cell {
			return true
		}
	}
	return false
}

func TestE2E_PlayToWin(t *testing.T) {
	adminKey, _ := crypto.GenerateKey()
	playerKey, _ := crypto.GenerateKey()
	e := newE2E(t, crypto.PubkeyToAddress(adminKey.PublicKey))

	adminToken := e.signIn(adminKey)
	playerToken := e.signIn(playerKey)

	// no grid yet
	var errBody map[string]string
	if code := e.call("POST", "/api/v1/games", playerToken, nil, &errBody); code != http.StatusConflict || errBody["code"] != "grid_not_initialized" {
		t.Fatalf("expected grid_not_initialized conflict, got %d %v", code, errBody)
	}

	values, err := oracle.LayoutValues(e2eMines)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	inputs, proof, err := e.oracle.Encrypt(values)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	initBody := oracle.ImportRequest{Inputs: inputs, Proof: proof}
	if code := e.call("POST", "/api/v1/admin/grid/init", playerToken, initBody, nil); code != http.StatusForbidden {
		t.Fatalf("expected player init to be forbidden, got %d", code)
	}
	if code := e.call("POST", "/api/v1/admin/grid/init", adminToken, initBody, nil); code != http.StatusOK {
		t.Fatalf("admin init: %d", code)
	}

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + playerToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ready: %v", err)
	}

	var game struct {
		ID    uint64 `json:"id"`
		State string `json:"state"`
	}
	if code := e.call("POST", "/api/v1/games", playerToken, nil, &game); code != http.StatusCreated || game.State != "active" {
		t.Fatalf("start: %d %+v", code, game)
	}

	// a forged proof is rejected and leaves the request pending
	if code := e.call("POST", "/api/v1/reveal", playerToken, map[string]interface{}{"game_id": game.ID, "cell": 0}, nil); code != http.StatusAccepted {
		t.Fatalf("reveal 0: %d", code)
	}
	forged := map[string]interface{}{"cleartext": true, "proof": hexutil.Encode(make([]byte, 130))}
	if code := e.call("POST", "/api/v1/reveal/complete", playerToken, forged, &errBody); code != http.StatusUnprocessableEntity || errBody["code"] != "invalid_proof" {
		t.Fatalf("expected invalid_proof, got %d %v", code, errBody)
	}
	if code := e.call("POST", "/api/v1/reveal/cancel", playerToken, nil, nil); code != http.StatusOK {
		t.Fatalf("cancel: %d", code)
	}

	var last map[string]interface{}
	for cell := 0; cell < 25; cell++ {
		if isE2EMine(cell) {
			continue
		}
		out, code := e.revealCell(playerToken, game.ID, cell)
		if code != http.StatusOK {
			t.Fatalf("complete %d: %d %v", cell, code, out)
		}
		last = out
	}
	if last["state"] != "won" || last["finished"] != true {
		t.Fatalf("expected a won game, got %v", last)
	}

	var board struct {
		Cells []string `json:"cells"`
	}
	e.call("GET", "/api/v1/games/1/board", playerToken, nil, &board)
	for i, s := range board.Cells {
		want := "safe"
		if isE2EMine(i) {
			want = "hidden"
		}
		if s != want {
			t.Fatalf("cell %d: expected %s, got %s", i, want, s)
		}
	}

	var rankings struct {
		Rankings []map[string]interface{} `json:"rankings"`
		Total    int                      `json:"total"`
	}
	if code := e.call("GET", "/api/v1/rankings?k=5", "", nil, &rankings); code != http.StatusOK || rankings.Total != 1 {
		t.Fatalf("rankings: %d %+v", code, rankings)
	}

	sawWin := false
	for !sawWin {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for game_won: %v", err)
		}
		sawWin = strings.Contains(string(msg), `"type":"game_won"`)
	}
}

func TestE2E_MineEndsGame(t *testing.T) {
	adminKey, _ := crypto.GenerateKey()
	playerKey, _ := crypto.GenerateKey()
	e := newE2E(t, crypto.PubkeyToAddress(adminKey.PublicKey))
	adminToken := e.signIn(adminKey)
	token := e.signIn(playerKey)

	values, _ := oracle.LayoutValues(e2eMines)
	inputs, proof, err := e.oracle.Encrypt(values)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if code := e.call("POST", "/api/v1/admin/grid/init", adminToken, oracle.ImportRequest{Inputs: inputs, Proof: proof}, nil); code != http.StatusOK {
		t.Fatalf("admin init: %d", code)
	}

	var game struct {
		ID uint64 `json:"id"`
	}
	e.call("POST", "/api/v1/games", token, nil, &game)

	out, code := e.revealCell(token, game.ID, e2eMines[0])
	if code != http.StatusOK || out["is_mine"] != true || out["state"] != "lost" {
		t.Fatalf("expected a lost game, got %d %v", code, out)
	}

	var errBody map[string]string
	if code := e.call("POST", "/api/v1/reveal", token, map[string]interface{}{"game_id": game.ID, "cell": 0}, &errBody); code != http.StatusConflict || errBody["code"] != "game_not_active" {
		t.Fatalf("expected game_not_active, got %d %v", code, errBody)
	}
	if code := e.call("GET", "/api/v1/games/99", token, nil, &errBody); code != http.StatusNotFound || errBody["code"] != "game_not_found" {
		t.Fatalf("expected game_not_found, got %d %v", code, errBody)
	}
	if code := e.call("GET", "/api/v1/reveal/pending", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}
