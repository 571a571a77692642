package tracerpc

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/ledgerwatch/erigon-lib/common/hexutil"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Jsonrpc string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *rpcError           `json:"error"`
}

// Client is a JSON-RPC client for nodes able to serve trace_block.
// Transport-level failures and retryable status codes (429, 5xx) are retried
// with backoff before an error is surfaced.
type Client struct {
	url        string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	reqID      atomic.Uint64
}

type Option func(*Client)

// WithRateLimit caps outgoing requests at rps requests per second.
// Non-positive values leave the client unlimited.
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// WithTimeout overrides the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = d
	}
}

func NewClient(url string, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = 600 * time.Second

	c := &Client{url: url, httpClient: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BlockTraces requests the parity traces of one block. A null or absent
// result means the node has nothing for that block and yields an empty
// slice, not an error.
func (c *Client) BlockTraces(ctx context.Context, blockNum uint64) ([]Trace, error) {
	var traces []Trace
	if err := c.call(ctx, "trace_block", []interface{}{fmt.Sprintf("0x%x", blockNum)}, &traces); err != nil {
		return nil, fmt.Errorf("trace_block %d: %w", blockNum, err)
	}
	return traces, nil
}

// ChainID queries eth_chainId.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", []interface{}{}, &result); err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return hexutil.DecodeUint64(result)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(rpcRequest{Jsonrpc: "2.0", Method: method, Params: params, ID: c.reqID.Add(1)})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}
