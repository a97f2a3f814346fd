package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/crypto"
)

// TxType represents the type of transaction
type TxType string

const (
	TxCreateItem   TxType = "create_item"
	TxTransferItem TxType = "transfer_item"
	TxRemoveItem   TxType = "remove_item"
	TxOpenOrder    TxType = "open_order"
	TxCancelOrder  TxType = "cancel_order"
	TxPlaceBid     TxType = "place_bid"
	TxAddStake     TxType = "add_stake"
	TxSettleOrder  TxType = "settle_order"
)

// IsItemTx reports whether the type only touches the item registry
func (t TxType) IsItemTx() bool {
	switch t {
	case TxCreateItem, TxTransferItem, TxRemoveItem:
		return true
	}
	return false
}

// Payload carries the arguments of every transaction type; unused fields stay zero
type Payload struct {
	ItemID     uint64 `json:"itemId,omitempty"`
	OrderID    uint64 `json:"orderId,omitempty"`
	To         string `json:"to,omitempty"`       // transfer_item recipient
	Metadata   string `json:"metadata,omitempty"` // create_item
	StartPrice int64  `json:"startPrice,omitempty"`
	MaxPrice   int64  `json:"maxPrice,omitempty"`
	KeepBlocks uint64 `json:"keepBlocks,omitempty"`
	Amount     int64  `json:"amount,omitempty"` // place_bid / add_stake
}

// SignedTransaction is the wire format of every transaction
type SignedTransaction struct {
	Type      TxType  `json:"type"`
	Sender    string  `json:"sender"` // Ethereum address (0x...)
	Nonce     uint64  `json:"nonce"`  // strictly increasing per sender
	Payload   Payload `json:"payload"`
	Signature string  `json:"signature"` // Hex-encoded EIP-712 signature (0x...)
}

// SenderAddress parses the sender field
func (tx *SignedTransaction) SenderAddress() common.Address {
	return common.HexToAddress(tx.Sender)
}

// ToEIP712 converts the transaction to the typed message that is signed
func (tx *SignedTransaction) ToEIP712() *crypto.TxEIP712 {
	var to common.Address
	if tx.Payload.To != "" {
		to = common.HexToAddress(tx.Payload.To)
	}
	return &crypto.TxEIP712{
		TxType:     string(tx.Type),
		Sender:     tx.SenderAddress(),
		Nonce:      tx.Nonce,
		ItemID:     tx.Payload.ItemID,
		OrderID:    tx.Payload.OrderID,
		To:         to,
		Metadata:   tx.Payload.Metadata,
		StartPrice: tx.Payload.StartPrice,
		MaxPrice:   tx.Payload.MaxPrice,
		KeepBlocks: tx.Payload.KeepBlocks,
		Amount:     tx.Payload.Amount,
	}
}

// Serialize converts SignedTransaction to JSON bytes
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into SignedTransaction
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Validate performs structural checks. Business rules are enforced by the engine.
func (tx *SignedTransaction) Validate() error {
	if tx.Type == "" {
		return fmt.Errorf("missing transaction type")
	}
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	if !common.IsHexAddress(tx.Sender) {
		return fmt.Errorf("invalid sender address: %q", tx.Sender)
	}
	if tx.Nonce == 0 {
		return fmt.Errorf("nonce must start at 1")
	}

	p := tx.Payload
	if p.StartPrice < 0 || p.MaxPrice < 0 || p.Amount < 0 {
		return fmt.Errorf("negative amount in payload")
	}

	switch tx.Type {
	case TxCreateItem, TxRemoveItem, TxCancelOrder, TxSettleOrder:
	case TxTransferItem:
		if !common.IsHexAddress(p.To) {
			return fmt.Errorf("transfer_item requires a recipient address")
		}
	case TxOpenOrder:
		if p.StartPrice == 0 || p.MaxPrice == 0 || p.KeepBlocks == 0 {
			return fmt.Errorf("open_order requires startPrice, maxPrice and keepBlocks")
		}
	case TxPlaceBid, TxAddStake:
		if p.Amount == 0 {
			return fmt.Errorf("%s requires amount", tx.Type)
		}
	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}
	return nil
}

// ParseTransaction decodes and structurally validates a raw transaction
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}

// Example:
//   {
//     "type": "place_bid",
//     "sender": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//     "nonce": 7,
//     "payload": {"orderId": 3, "amount": 150},
//     "signature": "0x1234567890abcdef..."
//   }
