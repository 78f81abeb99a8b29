// Package pricing derives share prices from video engagement. All functions are
// pure: the same inputs always produce the same outputs.
package pricing

import (
	"github.com/shopspring/decimal"

	apperrors "vidvest/internal/errors"
)

// LikesPerUnit is the number of likes that make one unit of currency.
const LikesPerUnit = 1000

var likesPerUnit = decimal.NewFromInt(LikesPerUnit)

// Quote is the price of a purchase of Amount shares.
type Quote struct {
	PerShare  decimal.Decimal `json:"per_share"`
	Amount    int64           `json:"amount"`
	Cost      decimal.Decimal `json:"cost"`
	CostCents int64           `json:"cost_cents"`
}

// PerShare returns likes / 1000. A non-positive price is rejected with
// ErrInvalidPrice so shares can never be free.
func PerShare(likes int64) (decimal.Decimal, error) {
	price := decimal.NewFromInt(likes).Div(likesPerUnit)
	if !price.IsPositive() {
		return decimal.Zero, apperrors.ErrInvalidPrice
	}
	return price, nil
}

// Price quotes amount shares at the given like count. Cost is rounded half-up
// to two decimals before being converted to cents; a purchase that rounds to
// zero is rejected like a zero price.
func Price(likes, amount int64) (Quote, error) {
	if amount <= 0 {
		return Quote{}, apperrors.ErrInvalidAmount
	}
	perShare, err := PerShare(likes)
	if err != nil {
		return Quote{}, err
	}
	cost := Round2(perShare.Mul(decimal.NewFromInt(amount)))
	if !cost.IsPositive() {
		return Quote{}, apperrors.ErrInvalidPrice
	}
	return Quote{
		PerShare:  perShare,
		Amount:    amount,
		Cost:      cost,
		CostCents: ToCents(cost),
	}, nil
}

// Round2 rounds to two decimals, halves away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts an amount with at most two decimals to integer cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ROI returns the percentage change from baseline to current, rounded to two
// decimals. A zero baseline yields zero.
func ROI(baseline, current int64) decimal.Decimal {
	if baseline == 0 {
		return decimal.Zero
	}
	delta := decimal.NewFromInt(current - baseline)
	return Round2(delta.Div(decimal.NewFromInt(baseline)).Mul(decimal.NewFromInt(100)))
}
