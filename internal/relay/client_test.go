package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcHandler func(method string, params []json.RawMessage) (interface{}, *rpcError)

func newBundlerStub(t *testing.T, handler rpcHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testOptions() Options {
	return Options{
		RequestTimeout:      5 * time.Second,
		ReceiptPollInterval: 10 * time.Millisecond,
		ReceiptTimeout:      time.Second,
	}
}

func TestGetUserOperationGasPrice_UsesFastTier(t *testing.T) {
	server := newBundlerStub(t, func(method string, _ []json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "pimlico_getUserOperationGasPrice", method)
		return map[string]interface{}{
			"slow":     map[string]string{"maxFeePerGas": "0x1", "maxPriorityFeePerGas": "0x1"},
			"standard": map[string]string{"maxFeePerGas": "0x2", "maxPriorityFeePerGas": "0x1"},
			"fast":     map[string]string{"maxFeePerGas": "0x3b9aca00", "maxPriorityFeePerGas": "0x5f5e100"},
		}, nil
	})
	defer server.Close()

	client := NewClient(server.URL, common.Address{}, testOptions())
	quote, err := client.GetUserOperationGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), quote.MaxFeePerGas.Int64())
	assert.Equal(t, int64(100_000_000), quote.MaxPriorityFeePerGas.Int64())
}

func TestSendUserOperation_PassesEntryPoint(t *testing.T) {
	entryPoint := common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
	opHash := "0x" + "11" + "22334455667788990011223344556677889900112233445566778899001122"

	server := newBundlerStub(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "eth_sendUserOperation", method)
		require.Len(t, params, 2)

		var gotEntryPoint common.Address
		require.NoError(t, json.Unmarshal(params[1], &gotEntryPoint))
		require.Equal(t, entryPoint, gotEntryPoint)
		return opHash, nil
	})
	defer server.Close()

	client := NewClient(server.URL, entryPoint, testOptions())
	hash, err := client.SendUserOperation(context.Background(), &UserOperation{})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(opHash), hash)
}

func TestSendUserOperation_SurfacesRPCError(t *testing.T) {
	server := newBundlerStub(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32500, Message: "AA21 didn't pay prefund"}
	})
	defer server.Close()

	client := NewClient(server.URL, common.Address{}, testOptions())
	_, err := client.SendUserOperation(context.Background(), &UserOperation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AA21")
}

func TestWaitForUserOperationReceipt_PollsUntilAvailable(t *testing.T) {
	var polls atomic.Int32
	txHash := common.HexToHash("0xdeadbeef")

	server := newBundlerStub(t, func(method string, _ []json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "eth_getUserOperationReceipt", method)
		if polls.Add(1) < 3 {
			return nil, nil // still pending
		}
		return map[string]interface{}{
			"userOpHash": common.HexToHash("0x01"),
			"success":    true,
			"receipt":    map[string]interface{}{"transactionHash": txHash},
		}, nil
	})
	defer server.Close()

	client := NewClient(server.URL, common.Address{}, testOptions())
	receipt, err := client.WaitForUserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, txHash, receipt.Receipt.TransactionHash)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitForUserOperationReceipt_TimesOut(t *testing.T) {
	server := newBundlerStub(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return nil, nil
	})
	defer server.Close()

	opts := testOptions()
	opts.ReceiptTimeout = 50 * time.Millisecond
	client := NewClient(server.URL, common.Address{}, opts)

	_, err := client.WaitForUserOperationReceipt(context.Background(), common.HexToHash("0x02"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
