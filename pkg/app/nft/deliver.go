package nft

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperbid/pkg/abci"
	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/transaction"
)

// Receipt codes outside the auction taxonomy
const (
	CodeInvalidTx        = "InvalidTransaction"
	CodeInvalidSignature = "InvalidSignature"
	CodeNonceTooLow      = "NonceTooLow"
)

// Receipt is the outcome of one executed transaction
type Receipt struct {
	TxHash string         `json:"txHash"`
	Height uint64         `json:"height"`
	Index  int            `json:"index"`
	Type   string         `json:"type,omitempty"`
	Sender common.Address `json:"sender"`
	Nonce  uint64         `json:"nonce"`
	OK     bool           `json:"ok"`
	Kind   string         `json:"kind,omitempty"` // error kind
	Code   string         `json:"code,omitempty"` // error code
	Error  string         `json:"error,omitempty"`
	// Created is the id allocated by create_item / open_order
	Created *uint64         `json:"created,omitempty"`
	Events  []auction.Event `json:"events,omitempty"`
}

func (r *Receipt) result() abci.TxResult {
	return abci.TxResult{Hash: r.TxHash, Code: r.Code, Log: r.Error, Events: len(r.Events)}
}

// TxHash is the 0x-prefixed Keccak256 of the raw transaction bytes
func TxHash(raw []byte) string {
	return ethcrypto.Keccak256Hash(raw).Hex()
}

// deliverTx verifies and executes one transaction. A correctly signed tx
// with a fresh nonce consumes the nonce even if the operation fails.
func (a *App) deliverTx(raw []byte, height uint64, index int) *Receipt {
	r := &Receipt{TxHash: TxHash(raw), Height: height, Index: index}

	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		r.Code, r.Error = CodeInvalidTx, err.Error()
		return r
	}
	r.Type, r.Nonce = string(tx.Type), tx.Nonce

	sender, err := a.verifier.Verify(tx)
	if err != nil {
		r.Code, r.Error = CodeInvalidSignature, err.Error()
		return r
	}
	r.Sender = sender

	if err := a.ledger.SetNonce(sender, tx.Nonce); err != nil {
		r.Code, r.Error = CodeNonceTooLow, err.Error()
		return r
	}

	a.txEvents = a.txEvents[:0]
	created, err := a.execute(sender, tx)
	if err != nil {
		r.Kind = auction.KindOf(err).String()
		r.Code = auction.CodeOf(err)
		if r.Code == "" {
			r.Code = "Unknown"
		}
		r.Error = err.Error()
		if a.logger != nil {
			a.logger.Debugw("tx_failed", "hash", r.TxHash, "type", tx.Type, "sender", sender.Hex(), "code", r.Code, "err", err)
		}
		return r
	}

	r.OK = true
	r.Created = created
	r.Events = append([]auction.Event(nil), a.txEvents...)
	a.blockEvents = append(a.blockEvents, a.txEvents...)
	return r
}

func (a *App) execute(sender common.Address, tx *transaction.SignedTransaction) (*uint64, error) {
	p := tx.Payload
	switch tx.Type {
	case transaction.TxCreateItem:
		id, err := a.engine.CreateItem(sender, p.Metadata)
		if err != nil {
			return nil, err
		}
		return &id, nil

	case transaction.TxTransferItem:
		return nil, a.engine.TransferItem(p.ItemID, sender, common.HexToAddress(p.To))

	case transaction.TxRemoveItem:
		return nil, a.engine.RemoveItem(p.ItemID, sender)

	case transaction.TxOpenOrder:
		id, err := a.engine.OpenOrder(sender, p.ItemID, p.StartPrice, p.MaxPrice, p.KeepBlocks)
		if err != nil {
			return nil, err
		}
		return &id, nil

	case transaction.TxCancelOrder:
		return nil, a.engine.CancelOrder(p.OrderID, sender)

	case transaction.TxPlaceBid:
		return nil, a.engine.PlaceBid(p.OrderID, sender, p.Amount)

	case transaction.TxAddStake:
		return nil, a.engine.AddStake(p.OrderID, sender, p.Amount)

	case transaction.TxSettleOrder:
		return nil, a.engine.SettleOrder(p.OrderID, sender)

	default:
		return nil, fmt.Errorf("unsupported transaction type: %s", tx.Type)
	}
}
