package auction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Params are the chain-wide auction constants
type Params struct {
	MinKeepBlocks     Height          `json:"minKeepBlocks"`     // shortest allowed bidding window
	MaxKeepBlocks     Height          `json:"maxKeepBlocks"`     // longest window, also caps anti-snipe extension
	MinimumPrice      Balance         `json:"minimumPrice"`      // lowest allowed start price
	MinimumVotingLock Balance         `json:"minimumVotingLock"` // smallest stake per AddStake
	FixRate           Balance         `json:"fixRate"`           // fixed treasury cut from profit
	ProfitRate        decimal.Decimal `json:"profitRate"`        // share of remaining profit paid to backers, in [0,1]
	AntiSnipeBlocks   Height          `json:"antiSnipeBlocks"`   // trailing window that extends the deadline, 0 disables
	Treasury          common.Address  `json:"treasury"`
}

// DefaultParams returns devnet defaults
func DefaultParams() Params {
	return Params{
		MinKeepBlocks:     100,
		MaxKeepBlocks:     100_000,
		MinimumPrice:      100,
		MinimumVotingLock: 10,
		FixRate:           10,
		ProfitRate:        decimal.NewFromFloat(0.5),
		AntiSnipeBlocks:   20,
		Treasury:          common.HexToAddress("0x000000000000000000000000000000000000fee5"),
	}
}

// Validate checks parameter consistency
func (p Params) Validate() error {
	if p.MinKeepBlocks == 0 {
		return fmt.Errorf("min keep blocks must be positive")
	}
	if p.MaxKeepBlocks < p.MinKeepBlocks {
		return fmt.Errorf("max keep blocks (%d) below min keep blocks (%d)", p.MaxKeepBlocks, p.MinKeepBlocks)
	}
	if p.MinimumPrice <= 0 {
		return fmt.Errorf("minimum price must be positive: %d", p.MinimumPrice)
	}
	if p.MinimumVotingLock <= 0 {
		return fmt.Errorf("minimum voting lock must be positive: %d", p.MinimumVotingLock)
	}
	if p.FixRate < 0 {
		return fmt.Errorf("fix rate must not be negative: %d", p.FixRate)
	}
	if p.ProfitRate.IsNegative() || p.ProfitRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("profit rate must be in [0,1]: %s", p.ProfitRate)
	}
	if p.AntiSnipeBlocks > p.MaxKeepBlocks {
		return fmt.Errorf("anti-snipe blocks (%d) exceed max keep blocks (%d)", p.AntiSnipeBlocks, p.MaxKeepBlocks)
	}
	return nil
}
