package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/uhyunpark/hyperbid/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperbid/pkg/app/nft"
	"github.com/uhyunpark/hyperbid/pkg/crypto"
)

func main() {
	var (
		keyHex   = flag.String("key", "", "hex private key (default: new random key)")
		devnet   = flag.Int("devnet", -1, "use the i-th devnet key instead of -key")
		txType   = flag.String("type", "create_item", "create_item|transfer_item|remove_item|open_order|cancel_order|place_bid|add_stake|settle_order")
		nonce    = flag.Uint64("nonce", 1, "sender nonce, strictly increasing")
		itemID   = flag.Uint64("item", 0, "item id")
		orderID  = flag.Uint64("order", 0, "order id")
		to       = flag.String("to", "", "transfer_item recipient")
		metadata = flag.String("metadata", "", "create_item metadata")
		start    = flag.Int64("start", 0, "open_order start price")
		maxPrice = flag.Int64("max", 0, "open_order max price")
		keep     = flag.Uint64("keep", 0, "open_order keep blocks")
		amount   = flag.Int64("amount", 0, "place_bid / add_stake amount")
		submit   = flag.String("submit", "", "POST the signed tx to this node, e.g. http://localhost:8080")
	)
	flag.Parse()

	signer, err := loadSigner(*keyHex, *devnet)
	if err != nil {
		fail("key", err)
	}
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	if *keyHex == "" && *devnet < 0 {
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	}
	fmt.Println()

	tx := &transaction.SignedTransaction{
		Type:  transaction.TxType(*txType),
		Nonce: *nonce,
		Payload: transaction.Payload{
			ItemID:     *itemID,
			OrderID:    *orderID,
			To:         *to,
			Metadata:   *metadata,
			StartPrice: *start,
			MaxPrice:   *maxPrice,
			KeepBlocks: *keep,
			Amount:     *amount,
		},
	}

	domain := crypto.DefaultDomain()
	if err := transaction.Sign(tx, signer, crypto.NewEIP712Signer(domain)); err != nil {
		fail("sign", err)
	}
	if err := tx.Validate(); err != nil {
		fail("validate", err)
	}
	if _, err := transaction.NewVerifier(domain).Verify(tx); err != nil {
		fail("verify", err)
	}

	txJSON, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		fail("marshal", err)
	}
	fmt.Println("Signed Transaction (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()

	if *submit == "" {
		fmt.Println("To submit:")
		fmt.Println("  POST http://localhost:8080/api/v1/tx")
		fmt.Println("  Content-Type: application/json")
		return
	}

	raw, _ := tx.Serialize()
	resp, err := resty.New().
		SetBaseURL(*submit).
		SetTimeout(10 * time.Second).
		R().
		SetHeader("Content-Type", "application/json").
		SetBody(raw).
		Post("/api/v1/tx")
	if err != nil {
		fail("submit", err)
	}
	fmt.Printf("%s %s\n", resp.Status(), bytes.TrimSpace(resp.Body()))
	if resp.IsError() {
		os.Exit(1)
	}
}

func loadSigner(keyHex string, devnet int) (*crypto.Signer, error) {
	switch {
	case devnet >= 0:
		return nft.DevnetSigner(devnet)
	case keyHex != "":
		return crypto.FromPrivateKeyHex(keyHex)
	default:
		fmt.Println("Generating new keypair...")
		return crypto.GenerateKey()
	}
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "Error (%s): %v\n", step, err)
	os.Exit(1)
}
