package stream

import "encoding/json"

const (
	accountSubscribeID = 1
	logsSubscribeID    = 2

	commitmentConfirmed = "confirmed"

	methodAccountNotification = "accountNotification"
	methodLogsNotification    = "logsNotification"
)

// BalanceNotification is an accountNotification for the watched address.
type BalanceNotification struct {
	// Target is the address the subscription was made for.
	Target   string
	Slot     uint64
	Lamports uint64
}

// LogsNotification is a logsNotification for a transaction mentioning the watched address.
type LogsNotification struct {
	Target    string
	Slot      uint64
	Signature string
	Logs      []string
	Err       interface{}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage covers both responses (ID set) and notifications (Method set).
type rpcMessage struct {
	ID     *int                `json:"id,omitempty"`
	Result json.RawMessage     `json:"result,omitempty"`
	Error  *rpcError           `json:"error,omitempty"`
	Method string              `json:"method,omitempty"`
	Params *notificationParams `json:"params,omitempty"`
}

type notificationParams struct {
	Subscription uint64          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type notificationContext struct {
	Slot uint64 `json:"slot"`
}

type accountResult struct {
	Context notificationContext `json:"context"`
	Value   struct {
		Lamports uint64 `json:"lamports"`
	} `json:"value"`
}

type logsResult struct {
	Context notificationContext `json:"context"`
	Value   struct {
		Signature string      `json:"signature"`
		Err       interface{} `json:"err"`
		Logs      []string    `json:"logs"`
	} `json:"value"`
}

func subscribeRequests(target string) []rpcRequest {
	return []rpcRequest{
		{
			JSONRPC: "2.0",
			ID:      accountSubscribeID,
			Method:  "accountSubscribe",
			Params: []interface{}{
				target,
				map[string]interface{}{
					"encoding":   "jsonParsed",
					"commitment": commitmentConfirmed,
				},
			},
		},
		{
			JSONRPC: "2.0",
			ID:      logsSubscribeID,
			Method:  "logsSubscribe",
			Params: []interface{}{
				map[string]interface{}{
					"mentions": []string{target},
				},
				map[string]interface{}{
					"commitment": commitmentConfirmed,
				},
			},
		},
	}
}
