package nft

import (
	"fmt"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperbid/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperbid/pkg/crypto"
)

// ChainView is the read side the generator plans against
type ChainView interface {
	Height() uint64
	Account(addr common.Address) *ledger.Account
	Items(owner *common.Address) []*item.Item
	Orders(openOnly bool) []*OrderView
	Params() auction.Params
}

// DevnetSigner derives the i-th devnet key; the same index always yields the same account
func DevnetSigner(i int) (*crypto.Signer, error) {
	return crypto.FromSeed(fmt.Sprintf("hyperbid-devnet-%d", i))
}

// DevnetGenesis funds the first n devnet accounts with balance each
func DevnetGenesis(n int, balance ledger.Balance) ([]GenesisAccount, error) {
	out := make([]GenesisAccount, 0, n)
	for i := 0; i < n; i++ {
		s, err := DevnetSigner(i)
		if err != nil {
			return nil, err
		}
		out = append(out, GenesisAccount{Address: s.Address(), Balance: balance})
	}
	return out, nil
}

// TxGenerator produces signed auction traffic from the devnet accounts.
// It plans against the committed state, so some txs may fail on execution.
type TxGenerator struct {
	signers []*crypto.Signer
	nonces  map[common.Address]uint64
	rng     *rand.Rand
	eip712  *crypto.EIP712Signer
	view    ChainView
}

func NewTxGenerator(numAccounts int, seed int64, view ChainView, domain crypto.EIP712Domain) (*TxGenerator, error) {
	if numAccounts < 2 {
		return nil, fmt.Errorf("need at least 2 accounts, got %d", numAccounts)
	}
	g := &TxGenerator{
		nonces: make(map[common.Address]uint64),
		rng:    rand.New(rand.NewSource(seed)),
		eip712: crypto.NewEIP712Signer(domain),
		view:   view,
	}
	for i := 0; i < numAccounts; i++ {
		s, err := DevnetSigner(i)
		if err != nil {
			return nil, err
		}
		g.signers = append(g.signers, s)
		g.nonces[s.Address()] = view.Account(s.Address()).Nonce
	}
	return g, nil
}

func (g *TxGenerator) Signers() []*crypto.Signer { return g.signers }

func (g *TxGenerator) sign(s *crypto.Signer, typ transaction.TxType, p transaction.Payload) ([]byte, error) {
	addr := s.Address()
	g.nonces[addr]++
	tx := &transaction.SignedTransaction{Type: typ, Nonce: g.nonces[addr], Payload: p}
	if err := transaction.Sign(tx, s, g.eip712); err != nil {
		return nil, err
	}
	return tx.Serialize()
}

// Next plans one transaction for a random account: settle a due order,
// list an idle item, bid or stake on someone else's order, or mint.
func (g *TxGenerator) Next() ([]byte, error) {
	s := g.signers[g.rng.Intn(len(g.signers))]
	addr := s.Address()
	params := g.view.Params()
	height := g.view.Height()

	var others []*OrderView
	for _, o := range g.view.Orders(true) {
		if height >= o.KeepUntil {
			return g.sign(s, transaction.TxSettleOrder, transaction.Payload{OrderID: o.ID})
		}
		if o.Seller != addr {
			others = append(others, o)
		}
	}

	for _, it := range g.view.Items(&addr) {
		if !it.InAuction() && g.rng.Intn(2) == 0 {
			start := params.MinimumPrice + ledger.Balance(g.rng.Intn(100))
			return g.sign(s, transaction.TxOpenOrder, transaction.Payload{
				ItemID:     it.ID,
				StartPrice: start,
				MaxPrice:   start * 3,
				KeepBlocks: params.MinKeepBlocks + uint64(g.rng.Intn(50)),
			})
		}
	}

	if len(others) > 0 {
		o := others[g.rng.Intn(len(others))]
		if g.rng.Intn(3) == 0 {
			amount := params.MinimumVotingLock + ledger.Balance(g.rng.Intn(20))
			return g.sign(s, transaction.TxAddStake, transaction.Payload{OrderID: o.ID, Amount: amount})
		}
		floor := o.StartPrice
		if o.HighBid != nil {
			floor = o.HighBid.Amount
		}
		amount := floor + 1 + ledger.Balance(g.rng.Intn(25))
		if amount > o.MaxPrice {
			amount = o.MaxPrice
		}
		return g.sign(s, transaction.TxPlaceBid, transaction.Payload{OrderID: o.ID, Amount: amount})
	}

	return g.sign(s, transaction.TxCreateItem, transaction.Payload{
		Metadata: fmt.Sprintf("ipfs://devnet/%s/%d", addr.Hex()[2:10], g.nonces[addr]+1),
	})
}

// GenerateBatch returns up to n signed txs
func (g *TxGenerator) GenerateBatch(n int) [][]byte {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		tx, err := g.Next()
		if err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out
}
