package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/chain-ledger/internal/errors"
)

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// RPCError is the error member of a JSON-RPC 2.0 response
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

var rpcID atomic.Int64

// Call performs a JSON-RPC 2.0 call against the client's base URL and decodes
// result into out. An error member becomes an upstream envelope error
// carrying the node's message; a null result leaves out untouched.
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      rpcID.Add(1),
		Method:  method,
		Params:  params,
	}

	var resp rpcResponse
	if err := c.PostJSON(ctx, "", req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return errors.NewUpstreamEnvelopeError(c.provider, method,
			fmt.Sprintf("rpc error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if out == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return errors.NewUpstreamEnvelopeError(c.provider, method, fmt.Sprintf("invalid result: %v", err))
	}
	return nil
}
