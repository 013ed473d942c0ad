// Package pricing computes proposal totals from nightly rates and schedule.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/splitlease/proposals/internal/models"
)

// WeeklyQuoter prices a stay as nightly rate x nights per week x weeks plus
// the one-off cleaning fee. The damage deposit is refundable and excluded.
type WeeklyQuoter struct{}

// Quote returns terms with TotalPrice filled in, rounded to cents.
func (WeeklyQuoter) Quote(_ context.Context, _ string, t models.Terms) (models.Terms, error) {
	if t.NightlyPrice.IsNegative() || t.CleaningFee.IsNegative() {
		return t, fmt.Errorf("pricing: negative rate")
	}

	nights := decimal.NewFromInt(int64(t.NightsPerWeek) * int64(t.ReservationWeeks))
	t.TotalPrice = t.NightlyPrice.Mul(nights).Add(t.CleaningFee).Round(2)

	return t, nil
}
