package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"hidden_mines/internal/domain"
)

// ImportRequest is the body of an input import call.
type ImportRequest struct {
	Inputs []ExternalInput `json:"inputs"`
	Proof  hexutil.Bytes   `json:"proof"`
}

type importResponse struct {
	Handles []domain.Handle `json:"handles"`
}

type allowRequest struct {
	Handle domain.Handle `json:"handle"`
}

// Disclosure is an attested cleartext as served by a relayer.
type Disclosure struct {
	Handle    domain.Handle `json:"handle"`
	Cleartext bool          `json:"cleartext"`
	Proof     hexutil.Bytes `json:"proof"`
}

// Gateway talks to an external coprocessor relayer over HTTP.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGateway(baseURL, apiKey string) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ImportInputs implements Oracle.
func (g *Gateway) ImportInputs(ctx context.Context, inputs []ExternalInput, proof []byte) ([]domain.Handle, error) {
	var resp importResponse
	if err := g.do(ctx, http.MethodPost, "/v1/inputs/import", ImportRequest{Inputs: inputs, Proof: proof}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Handles) != len(inputs) {
		return nil, fmt.Errorf("oracle: relayer returned %d handles for %d inputs", len(resp.Handles), len(inputs))
	}
	return resp.Handles, nil
}

// AllowPublicDecryption implements Oracle.
func (g *Gateway) AllowPublicDecryption(ctx context.Context, handle domain.Handle) error {
	return g.do(ctx, http.MethodPost, "/v1/decryption/allow", allowRequest{Handle: handle}, nil)
}

// Disclose implements Discloser.
func (g *Gateway) Disclose(ctx context.Context, handle domain.Handle) (bool, []byte, error) {
	var d Disclosure
	if err := g.do(ctx, http.MethodGet, "/v1/decryption/"+handle.Hex(), nil, &d); err != nil {
		return false, nil, err
	}
	return d.Cleartext, d.Proof, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrUnknownHandle
	case http.StatusConflict:
		return ErrNotDisclosable
	case http.StatusUnprocessableEntity:
		return domain.ErrInvalidProof
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("oracle: relayer error: %s - %s", resp.Status, string(msg))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
