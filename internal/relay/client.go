package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dhruv457457/AutoPay/internal/logger"
)

// Client talks JSON-RPC to the ERC-4337 bundler: gas-price quotes, user
// operation submission, and receipt polling. It is the only path the agent
// has for getting a payment on chain.
type Client struct {
	url            string
	entryPoint     common.Address
	httpClient     *http.Client
	pollInterval   time.Duration
	receiptTimeout time.Duration
	requestID      atomic.Uint64
}

// Options configures timing behavior of the client.
type Options struct {
	RequestTimeout      time.Duration
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

// NewClient builds a bundler client for the given RPC endpoint.
func NewClient(url string, entryPoint common.Address, opts Options) *Client {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ReceiptPollInterval == 0 {
		opts.ReceiptPollInterval = 2 * time.Second
	}
	if opts.ReceiptTimeout == 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	return &Client{
		url:            url,
		entryPoint:     entryPoint,
		httpClient:     &http.Client{Timeout: opts.RequestTimeout},
		pollInterval:   opts.ReceiptPollInterval,
		receiptTimeout: opts.ReceiptTimeout,
	}
}

// GasPrice is one fee tier quoted by the bundler.
type GasPrice struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

type gasPriceTier struct {
	MaxFeePerGas         *hexutil.Big `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big `json:"maxPriorityFeePerGas"`
}

type gasPriceResult struct {
	Slow     gasPriceTier `json:"slow"`
	Standard gasPriceTier `json:"standard"`
	Fast     gasPriceTier `json:"fast"`
}

// BatchCall is one target+calldata pair inside a user operation.
type BatchCall struct {
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Data  hexutil.Bytes  `json:"data"`
}

// UserOperation is the submission payload the bundler accepts. The agent's
// smart account is the sender; the calls run from that account.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Calls                []BatchCall    `json:"calls"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// Receipt is the finality report for a submitted user operation. Success is
// false for an on-chain revert.
type Receipt struct {
	UserOpHash common.Hash `json:"userOpHash"`
	Success    bool        `json:"success"`
	Receipt    struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// GetUserOperationGasPrice fetches the current fee quote. The fast tier is
// used for submissions, matching the original agent's behavior.
func (c *Client) GetUserOperationGasPrice(ctx context.Context) (*GasPrice, error) {
	var result gasPriceResult
	if err := c.call(ctx, "pimlico_getUserOperationGasPrice", []interface{}{}, &result); err != nil {
		return nil, err
	}
	if result.Fast.MaxFeePerGas == nil || result.Fast.MaxPriorityFeePerGas == nil {
		return nil, fmt.Errorf("bundler quote missing fast tier fees")
	}
	return &GasPrice{
		MaxFeePerGas:         result.Fast.MaxFeePerGas.ToInt(),
		MaxPriorityFeePerGas: result.Fast.MaxPriorityFeePerGas.ToInt(),
	}, nil
}

// SendUserOperation submits the operation and returns its pending hash.
func (c *Client) SendUserOperation(ctx context.Context, op *UserOperation) (common.Hash, error) {
	var hash common.Hash
	if err := c.call(ctx, "eth_sendUserOperation", []interface{}{op, c.entryPoint}, &hash); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// WaitForUserOperationReceipt blocks until the bundler reports a receipt, the
// overall timeout elapses, or ctx is cancelled. A null result means still
// pending, so keep polling.
func (c *Client) WaitForUserOperationReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	deadline := time.NewTimer(c.receiptTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.getReceipt(ctx, hash)
		if err != nil {
			logger.Logger.Debug().Err(err).Str("user_op_hash", hash.Hex()).Msg("receipt poll failed, retrying")
		} else if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("timed out waiting for receipt of %s after %s", hash.Hex(), c.receiptTimeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) getReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getUserOperationReceipt", []interface{}{hash}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &receipt, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, payload)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("%s rpc error %d: %s", method, parsed.Error.Code, parsed.Error.Message)
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = parsed.Result
		return nil
	}
	if err := json.Unmarshal(parsed.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
