package api

import (
	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AccountInfo represents an account's balances
type AccountInfo struct {
	Address  string `json:"address"`
	Free     int64  `json:"free"`     // Spendable balance
	Reserved int64  `json:"reserved"` // Held by live bids and stakes
	Total    int64  `json:"total"`    // Free + Reserved
	Nonce    uint64 `json:"nonce"`    // Highest accepted tx nonce
}

func accountInfo(acc *ledger.Account) AccountInfo {
	return AccountInfo{
		Address:  acc.Address.Hex(),
		Free:     acc.Free,
		Reserved: acc.Reserved,
		Total:    acc.Total(),
		Nonce:    acc.Nonce,
	}
}

// ParamsInfo mirrors auction.Params with the profit rate as a decimal string
type ParamsInfo struct {
	MinKeepBlocks     uint64 `json:"minKeepBlocks"`
	MaxKeepBlocks     uint64 `json:"maxKeepBlocks"`
	MinimumPrice      int64  `json:"minimumPrice"`
	MinimumVotingLock int64  `json:"minimumVotingLock"`
	FixRate           int64  `json:"fixRate"`
	ProfitRate        string `json:"profitRate"`
	AntiSnipeBlocks   uint64 `json:"antiSnipeBlocks"`
	Treasury          string `json:"treasury"`
}

func paramsInfo(p auction.Params) ParamsInfo {
	return ParamsInfo{
		MinKeepBlocks:     p.MinKeepBlocks,
		MaxKeepBlocks:     p.MaxKeepBlocks,
		MinimumPrice:      p.MinimumPrice,
		MinimumVotingLock: p.MinimumVotingLock,
		FixRate:           p.FixRate,
		ProfitRate:        p.ProfitRate.String(),
		AntiSnipeBlocks:   p.AntiSnipeBlocks,
		Treasury:          p.Treasury.Hex(),
	}
}

// SubmitTxResponse is returned after a tx is admitted to the mempool
type SubmitTxResponse struct {
	Status string `json:"status"` // "submitted"
	TxHash string `json:"txHash"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope of every pushed message
type WSMessage struct {
	Channel string      `json:"channel"`
	Type    string      `json:"type"` // event type, or "block"
	Data    interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
//
//	{"op": "subscribe", "channels": ["events", "order:3", "account:0xabc..."]}
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// BlockInfo is pushed on the "blocks" channel after every block
type BlockInfo struct {
	Height uint64 `json:"height"`
	Txs    int    `json:"txs"`
	Failed int    `json:"failed"`
}
