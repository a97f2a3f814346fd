package crypto

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}
	if len(signer.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(signer.PrivateKeyHex()))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()

	for _, in := range []string{privHex, "0x" + privHex} {
		signer2, err := FromPrivateKeyHex(in)
		if err != nil {
			t.Fatalf("failed to load key %q: %v", in, err)
		}
		if signer2.Address() != signer1.Address() {
			t.Errorf("address = %s, want %s", signer2.Address().Hex(), signer1.Address().Hex())
		}
	}

	if _, err := FromPrivateKeyHex("zz"); err == nil {
		t.Error("expected error for bad hex")
	}
}

func TestFromSeedDeterministic(t *testing.T) {
	a, err := FromSeed("devnet-0")
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	b, _ := FromSeed("devnet-0")
	c, _ := FromSeed("devnet-1")

	if a.Address() != b.Address() {
		t.Error("same seed produced different keys")
	}
	if a.Address() == c.Address() {
		t.Error("different seeds produced the same key")
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	message := []byte("Hello, HyperBid!")

	signature, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(signature))
	}

	hash := eth_crypto.Keccak256Hash(message).Bytes()
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	if !VerifySignature(signer.Address(), hash, signature) {
		t.Error("signature verification failed")
	}
	if VerifySignature(common.HexToAddress("0x01"), hash, signature) {
		t.Error("signature should not verify with wrong address")
	}
	if VerifySignature(signer.Address(), hash, []byte{1, 2, 3}) {
		t.Error("short signature should not verify")
	}
}

func TestHashTx(t *testing.T) {
	es := NewEIP712Signer(DefaultDomain())
	signer, _ := FromSeed("alice")

	tx := &TxEIP712{
		TxType:  "place_bid",
		Sender:  signer.Address(),
		Nonce:   1,
		OrderID: 3,
		Amount:  150,
	}

	h1, err := es.HashTx(tx)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(h1) != 32 {
		t.Fatalf("hash length = %d", len(h1))
	}

	// Any field change changes the digest
	changed := *tx
	changed.Amount = 151
	h2, _ := es.HashTx(&changed)
	if string(h1) == string(h2) {
		t.Error("amount not covered by hash")
	}

	// Domain separation
	other := DefaultDomain()
	other.ChainID = big.NewInt(1)
	h3, _ := NewEIP712Signer(other).HashTx(tx)
	if string(h1) == string(h3) {
		t.Error("chain id not covered by hash")
	}

	sig, err := es.SignTx(signer, tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := es.RecoverTxSigner(tx, sig)
	if err != nil || recovered != signer.Address() {
		t.Errorf("recovered %s (%v), want %s", recovered.Hex(), err, signer.Address().Hex())
	}

	tx.Amount = -1
	if _, err := es.HashTx(tx); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestTxToJSON(t *testing.T) {
	es := NewEIP712Signer(DefaultDomain())
	out, err := es.TxToJSON(&TxEIP712{TxType: "create_item", Metadata: "ipfs://x"})
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if !strings.Contains(out, "AuctionTx") || !strings.Contains(out, "ipfs://x") {
		t.Errorf("unexpected typed data json: %s", out)
	}
}
