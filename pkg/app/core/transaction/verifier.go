package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/crypto"
)

// Verifier handles transaction signature verification
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

// NewVerifier creates a new transaction verifier
func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// Verify checks that the signature was made by the declared sender
// and returns the sender address
func (v *Verifier) Verify(tx *SignedTransaction) (common.Address, error) {
	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}

	recovered, err := v.eip712Signer.RecoverTxSigner(tx.ToEIP712(), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature verification failed: %w", err)
	}

	sender := tx.SenderAddress()
	if recovered != sender {
		return common.Address{}, fmt.Errorf("signature signed by %s, sender is %s", recovered.Hex(), sender.Hex())
	}
	return sender, nil
}

// Sign fills tx.Sender and tx.Signature using signer
func Sign(tx *SignedTransaction, signer *crypto.Signer, es *crypto.EIP712Signer) error {
	tx.Sender = signer.Address().Hex()
	sig, err := es.SignTx(signer, tx.ToEIP712())
	if err != nil {
		return err
	}
	tx.Signature = "0x" + hex.EncodeToString(sig)
	return nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}
