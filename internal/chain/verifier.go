// Package chain verifies forum transactions against an EVM JSON-RPC
// endpoint. Verification is optional: when no endpoint is configured the
// service runs offline and hashes are only checked for format and reuse.
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/web3-forum-api/internal/config"
)

// Outcome classifies a verification attempt. Unavailable means the
// endpoint could not be reached or timed out; the caller decides whether
// to degrade or reject.
type Outcome int

const (
	OutcomeVerified Outcome = iota
	OutcomeInvalid
	OutcomeUnavailable
)

// Result carries the verification outcome plus block metadata for the
// used-transaction record.
type Result struct {
	Outcome     Outcome
	Reason      string
	BlockNumber *int64
}

// Verifier checks transactions against the forum contract over JSON-RPC
type Verifier struct {
	rpcURL   string
	contract string
	client   *http.Client
	log      zerolog.Logger
}

// NewVerifier creates a verifier bound to the configured endpoint and
// contract address
func NewVerifier(cfg *config.ChainConfig, log zerolog.Logger) *Verifier {
	return &Verifier{
		rpcURL:   cfg.RPCURL,
		contract: strings.ToLower(cfg.ContractAddress),
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		log:      log.With().Str("component", "chain").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type transaction struct {
	From        string `json:"from"`
	To          string `json:"to"`
	BlockNumber string `json:"blockNumber"`
}

type receipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	Logs        []struct {
		Address string `json:"address"`
	} `json:"logs"`
}

// VerifyTransaction confirms that the hash names a successful
// transaction sent by expectedSender to the forum contract, and that the
// contract emitted at least one event in it.
func (v *Verifier) VerifyTransaction(ctx context.Context, hash, expectedSender string) *Result {
	var tx transaction
	found, err := v.call(ctx, "eth_getTransactionByHash", []interface{}{hash}, &tx)
	if err != nil {
		v.log.Warn().Str("hash", hash).Err(err).Msg("Transaction lookup failed")
		return &Result{Outcome: OutcomeUnavailable, Reason: err.Error()}
	}
	if !found {
		return &Result{Outcome: OutcomeInvalid, Reason: "transaction not found"}
	}

	if !strings.EqualFold(tx.From, expectedSender) {
		return &Result{Outcome: OutcomeInvalid, Reason: "transaction sender does not match author"}
	}
	if !strings.EqualFold(tx.To, v.contract) {
		return &Result{Outcome: OutcomeInvalid, Reason: "transaction target is not the forum contract"}
	}

	var rcpt receipt
	found, err = v.call(ctx, "eth_getTransactionReceipt", []interface{}{hash}, &rcpt)
	if err != nil {
		v.log.Warn().Str("hash", hash).Err(err).Msg("Receipt lookup failed")
		return &Result{Outcome: OutcomeUnavailable, Reason: err.Error()}
	}
	if !found {
		return &Result{Outcome: OutcomeInvalid, Reason: "transaction not yet mined"}
	}
	if rcpt.Status != "0x1" {
		return &Result{Outcome: OutcomeInvalid, Reason: "transaction reverted"}
	}

	emitted := false
	for _, l := range rcpt.Logs {
		if strings.EqualFold(l.Address, v.contract) {
			emitted = true
			break
		}
	}
	if !emitted {
		return &Result{Outcome: OutcomeInvalid, Reason: "no contract event in transaction"}
	}

	return &Result{Outcome: OutcomeVerified, BlockNumber: parseHexInt(rcpt.BlockNumber)}
}

// UsernameOf reads the on-chain username for an address via eth_call,
// used to sync chain-registered names into the store. Returns an empty
// string when none is registered.
func (v *Verifier) UsernameOf(ctx context.Context, address string) (string, error) {
	data := "0x" + hex.EncodeToString(usernameSelector()) + padAddress(address)

	var result string
	found, err := v.call(ctx, "eth_call", []interface{}{
		map[string]string{"to": v.contract, "data": data},
		"latest",
	}, &result)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return decodeABIString(result)
}

// call performs one JSON-RPC round trip. found is false when the node
// returned a null result.
func (v *Verifier) call(ctx context.Context, method string, params []interface{}, out interface{}) (bool, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.rpcURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return false, fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return false, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return false, fmt.Errorf("failed to decode rpc result: %w", err)
	}
	return true, nil
}

// usernameSelector computes the 4-byte selector for
// getUsernameByAddress(address)
func usernameSelector() []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte("getUsernameByAddress(address)"))
	return hash.Sum(nil)[:4]
}

// padAddress left-pads an address to a 32-byte ABI word
func padAddress(address string) string {
	addr := strings.TrimPrefix(strings.ToLower(address), "0x")
	return strings.Repeat("0", 64-len(addr)) + addr
}

// decodeABIString unpacks a single ABI-encoded string return value
func decodeABIString(result string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil {
		return "", fmt.Errorf("malformed eth_call result: %w", err)
	}
	if len(raw) < 64 {
		return "", nil
	}

	offset := new(big.Int).SetBytes(raw[:32]).Int64()
	if offset+32 > int64(len(raw)) {
		return "", fmt.Errorf("string offset out of range")
	}
	length := new(big.Int).SetBytes(raw[offset : offset+32]).Int64()
	start := offset + 32
	if start+length > int64(len(raw)) {
		return "", fmt.Errorf("string length out of range")
	}
	return string(raw[start : start+length]), nil
}

func parseHexInt(s string) *int64 {
	if s == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return nil
	}
	v := n.Int64()
	return &v
}
