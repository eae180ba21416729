package totals

import (
	"strings"

	"github.com/shopspring/decimal"
)

// fallbackRatesPercent is a policy-default country table used only when
// no explicit customer or configured rate is supplied. These are rough
// storefront defaults, not authoritative tax law; implementers needing
// jurisdiction-accurate rates must supply them per call.
var fallbackRatesPercent = map[string]string{
	"US": "7.25",
	"CA": "13",
	"GB": "20",
	"DE": "19",
	"FR": "20",
	"ES": "21",
	"IT": "22",
	"AU": "10",
	"JP": "10",
	"NZ": "15",
}

// resolveRateFraction returns the effective tax rate as a fraction
// (8.25% -> 0.0825). Precedence: per-call customer rate, configured
// rate, country fallback, zero.
func (c *Calculator) resolveRateFraction(customerRate *decimal.Decimal) decimal.Decimal {
	if !c.cfg.Enabled {
		return decimal.Zero
	}
	if customerRate != nil {
		return customerRate.Div(hundred)
	}
	if c.explicitRate != nil {
		return c.explicitRate.Div(hundred)
	}
	if raw, ok := fallbackRatesPercent[strings.ToUpper(strings.TrimSpace(c.cfg.Country))]; ok {
		rate, err := decimal.NewFromString(raw)
		if err == nil {
			return rate.Div(hundred)
		}
	}
	return decimal.Zero
}
