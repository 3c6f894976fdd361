package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-forum-api/internal/config"
)

const (
	contractAddr = "0x1111111111111111111111111111111111111111"
	senderAddr   = "0x2222222222222222222222222222222222222222"
	txHash       = "0x3333333333333333333333333333333333333333333333333333333333333333"
)

// rpcStub serves canned results per JSON-RPC method
type rpcStub struct {
	results map[string]interface{}
}

func (s *rpcStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		result, ok := s.results[req.Method]
		if !ok {
			result = nil
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  result,
		})
	}
}

func newTestVerifier(t *testing.T, url string) *Verifier {
	t.Helper()
	return NewVerifier(&config.ChainConfig{
		RPCURL:          url,
		ContractAddress: contractAddr,
		RequestTimeout:  2 * time.Second,
	}, zerolog.Nop())
}

func validStub() *rpcStub {
	return &rpcStub{results: map[string]interface{}{
		"eth_getTransactionByHash": map[string]interface{}{
			"from":        senderAddr,
			"to":          contractAddr,
			"blockNumber": "0x10",
		},
		"eth_getTransactionReceipt": map[string]interface{}{
			"status":      "0x1",
			"blockNumber": "0x10",
			"logs": []map[string]interface{}{
				{"address": contractAddr},
			},
		},
	}}
}

func TestVerifyTransactionSuccess(t *testing.T) {
	srv := httptest.NewServer(validStub().handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)

	assert.Equal(t, OutcomeVerified, res.Outcome)
	require.NotNil(t, res.BlockNumber)
	assert.Equal(t, int64(16), *res.BlockNumber)
}

func TestVerifyTransactionSenderMismatch(t *testing.T) {
	srv := httptest.NewServer(validStub().handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, "0x9999999999999999999999999999999999999999")

	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Reason, "sender")
}

func TestVerifyTransactionWrongContract(t *testing.T) {
	stub := validStub()
	stub.results["eth_getTransactionByHash"] = map[string]interface{}{
		"from": senderAddr,
		"to":   "0x4444444444444444444444444444444444444444",
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)

	assert.Equal(t, OutcomeInvalid, res.Outcome)
}

func TestVerifyTransactionReverted(t *testing.T) {
	stub := validStub()
	stub.results["eth_getTransactionReceipt"] = map[string]interface{}{
		"status": "0x0",
		"logs":   []map[string]interface{}{},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)

	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Reason, "reverted")
}

func TestVerifyTransactionNoContractEvent(t *testing.T) {
	stub := validStub()
	stub.results["eth_getTransactionReceipt"] = map[string]interface{}{
		"status": "0x1",
		"logs": []map[string]interface{}{
			{"address": "0x5555555555555555555555555555555555555555"},
		},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)

	assert.Equal(t, OutcomeInvalid, res.Outcome)
}

func TestVerifyTransactionNotFound(t *testing.T) {
	srv := httptest.NewServer((&rpcStub{results: map[string]interface{}{}}).handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)

	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Reason, "not found")
}

func TestVerifyTransactionEndpointDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // refuse connections

	v := newTestVerifier(t, srv.URL)
	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)

	assert.Equal(t, OutcomeUnavailable, res.Outcome)
}

func TestVerifyTransactionTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	v := NewVerifier(&config.ChainConfig{
		RPCURL:          srv.URL,
		ContractAddress: contractAddr,
		RequestTimeout:  50 * time.Millisecond,
	}, zerolog.Nop())

	res := v.VerifyTransaction(context.Background(), txHash, senderAddr)
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
}

func TestUsernameOf(t *testing.T) {
	// ABI encoding of the string "alice": offset word, length word, data
	encoded := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000005" +
		"616c696365000000000000000000000000000000000000000000000000000000"

	stub := &rpcStub{results: map[string]interface{}{"eth_call": encoded}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	name, err := v.UsernameOf(context.Background(), senderAddr)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestUsernameOfEmpty(t *testing.T) {
	encoded := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000000"

	stub := &rpcStub{results: map[string]interface{}{"eth_call": encoded}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	v := newTestVerifier(t, srv.URL)
	name, err := v.UsernameOf(context.Background(), senderAddr)
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestDecodeABIStringMalformed(t *testing.T) {
	_, err := decodeABIString("0xzz")
	assert.Error(t, err)

	// Truncated payload decodes to empty rather than panicking
	name, err := decodeABIString("0x00")
	require.NoError(t, err)
	assert.Equal(t, "", name)
}
