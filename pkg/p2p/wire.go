package p2p

import (
	"github.com/fxamacker/cbor/v2"
)

// TxWire carries one raw signed transaction
type TxWire struct {
	Tx     []byte `cbor:"1,keyasint"` // JSON SignedTransaction
	Origin string `cbor:"2,keyasint"` // peer that first published it
}

// BlockWire announces a committed block
type BlockWire struct {
	Height   uint64   `cbor:"1,keyasint"`
	Hash     [32]byte `cbor:"2,keyasint"`
	AppHash  [32]byte `cbor:"3,keyasint"`
	Proposer string   `cbor:"4,keyasint"`
	Txs      int      `cbor:"5,keyasint"`
}

// frames are core deterministic CBOR
var encMode, _ = cbor.CoreDetEncOptions().EncMode()

func encodeWire(v any) ([]byte, error) { return encMode.Marshal(v) }

func decodeWire(b []byte, v any) error { return cbor.Unmarshal(b, v) }
