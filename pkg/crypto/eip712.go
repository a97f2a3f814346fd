package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // zero for off-chain signing
}

// DefaultDomain returns the devnet domain
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "HyperBid",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// TxEIP712 is the typed message every auction transaction signs.
// One flat struct covers all transaction types; unused fields are zero.
type TxEIP712 struct {
	TxType     string
	Sender     common.Address
	Nonce      uint64
	ItemID     uint64
	OrderID    uint64
	To         common.Address
	Metadata   string
	StartPrice int64
	MaxPrice   int64
	KeepBlocks uint64
	Amount     int64
}

var txTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"AuctionTx": []apitypes.Type{
		{Name: "txType", Type: "string"},
		{Name: "sender", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "itemId", Type: "uint256"},
		{Name: "orderId", Type: "uint256"},
		{Name: "to", Type: "address"},
		{Name: "metadata", Type: "string"},
		{Name: "startPrice", Type: "uint256"},
		{Name: "maxPrice", Type: "uint256"},
		{Name: "keepBlocks", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
	},
}

// EIP712Signer hashes and signs auction transactions under one domain
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) Domain() EIP712Domain {
	return e.domain
}

func (e *EIP712Signer) typedData(tx *TxEIP712) (apitypes.TypedData, error) {
	if tx.StartPrice < 0 || tx.MaxPrice < 0 || tx.Amount < 0 {
		return apitypes.TypedData{}, fmt.Errorf("amounts must not be negative")
	}
	return apitypes.TypedData{
		Types:       txTypes,
		PrimaryType: "AuctionTx",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"txType":     tx.TxType,
			"sender":     tx.Sender.Hex(),
			"nonce":      strconv.FormatUint(tx.Nonce, 10),
			"itemId":     strconv.FormatUint(tx.ItemID, 10),
			"orderId":    strconv.FormatUint(tx.OrderID, 10),
			"to":         tx.To.Hex(),
			"metadata":   tx.Metadata,
			"startPrice": strconv.FormatInt(tx.StartPrice, 10),
			"maxPrice":   strconv.FormatInt(tx.MaxPrice, 10),
			"keepBlocks": strconv.FormatUint(tx.KeepBlocks, 10),
			"amount":     strconv.FormatInt(tx.Amount, 10),
		},
	}, nil
}

// HashTx returns the EIP-712 digest keccak256("\x19\x01" || domainSeparator || hashStruct(tx))
func (e *EIP712Signer) HashTx(tx *TxEIP712) ([]byte, error) {
	typedData, err := e.typedData(tx)
	if err != nil {
		return nil, err
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return crypto.Keccak256(rawData), nil
}

// SignTx signs the typed transaction with signer
func (e *EIP712Signer) SignTx(signer *Signer, tx *TxEIP712) ([]byte, error) {
	hash, err := e.HashTx(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to hash tx: %w", err)
	}
	return signer.Sign(hash)
}

// RecoverTxSigner recovers the address that signed tx
func (e *EIP712Signer) RecoverTxSigner(tx *TxEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashTx(tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash tx: %w", err)
	}
	return RecoverAddress(hash, signature)
}

// TxToJSON renders the typed data for wallets (eth_signTypedData_v4)
func (e *EIP712Signer) TxToJSON(tx *TxEIP712) (string, error) {
	typedData, err := e.typedData(tx)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(out), nil
}
