package auction

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Split is how a final price is disbursed.
// Seller + Treasury + sum(Rewards) == Price.
type Split struct {
	Price     Balance  `json:"price"`
	Profit    Balance  `json:"profit"`    // max(0, price - start)
	FixedCut  Balance  `json:"fixedCut"`  // min(profit, FixRate)
	Remaining Balance  `json:"remaining"` // profit - fixed cut
	Pool      Balance  `json:"pool"`      // backer pool actually allocated; 0 without stakes
	Dust      Balance  `json:"dust"`      // pool rounding remainder, paid to treasury
	Seller    Balance  `json:"seller"`
	Treasury  Balance  `json:"treasury"`
	Rewards   []Reward `json:"rewards,omitempty"`
}

// Reward is one backer's profit share. The stake itself is returned separately.
type Reward struct {
	Backer common.Address `json:"backer"`
	Stake  Balance        `json:"stake"`
	Reward Balance        `json:"reward"`
}

// ComputeSplit divides price between seller, treasury and backers.
// Pro-rata rewards round down; the dust goes to the treasury so the pool is
// never over-paid. Without stakes the pool stays with the seller.
func ComputeSplit(price, startPrice Balance, stakes []*Stake, fixRate Balance, profitRate decimal.Decimal) Split {
	s := Split{Price: price}
	if price > startPrice {
		s.Profit = price - startPrice
	}
	s.FixedCut = s.Profit
	if s.FixedCut > fixRate {
		s.FixedCut = fixRate
	}
	if s.FixedCut < 0 {
		s.FixedCut = 0
	}
	s.Remaining = s.Profit - s.FixedCut

	total := decimal.Zero
	for _, st := range stakes {
		total = total.Add(decimal.NewFromInt(st.Amount))
	}

	if total.IsPositive() {
		pool := decimal.NewFromInt(s.Remaining).Mul(profitRate).Floor()
		s.Pool = pool.IntPart()

		paid := Balance(0)
		s.Rewards = make([]Reward, 0, len(stakes))
		for _, st := range stakes {
			q, _ := decimal.NewFromInt(st.Amount).Mul(pool).QuoRem(total, 0)
			r := q.IntPart()
			paid += r
			s.Rewards = append(s.Rewards, Reward{Backer: st.Backer, Stake: st.Amount, Reward: r})
		}
		s.Dust = s.Pool - paid
	}

	s.Seller = price - s.FixedCut - s.Pool
	s.Treasury = s.FixedCut + s.Dust
	return s
}

// PaidToBackers sums the rewards
func (s Split) PaidToBackers() Balance {
	total := Balance(0)
	for _, r := range s.Rewards {
		total += r.Reward
	}
	return total
}

// PreviewSplit computes the split the order would get if it settled now at
// price. Only prices a bid could reach, 1 through MaxPrice, are accepted.
func (e *Engine) PreviewSplit(orderID uint64, price Balance) (Split, error) {
	o, ok := e.orders[orderID]
	if !ok {
		return Split{}, fail(ErrOrderNotFound, "order %d", orderID)
	}
	if price <= 0 {
		return Split{}, fail(ErrInvalidAmount, "price %d", price)
	}
	if price > o.MaxPrice {
		return Split{}, fail(ErrInvalidRange, "price %d above max price %d", price, o.MaxPrice)
	}
	return ComputeSplit(price, o.StartPrice, e.stakes[orderID], e.params.FixRate, e.params.ProfitRate), nil
}
