package repository

// Lookback is a price-history range understood by the market-data provider.
type Lookback string

const (
	Lookback1mo Lookback = "1mo"
	Lookback3mo Lookback = "3mo"
	Lookback6mo Lookback = "6mo"
	Lookback1y  Lookback = "1y"
	Lookback2y  Lookback = "2y"
	Lookback5y  Lookback = "5y"
	Lookback10y Lookback = "10y"
	LookbackYTD Lookback = "ytd"
	LookbackMax Lookback = "max"
)

// IsValidLookback returns true if lb is a supported range.
func IsValidLookback(lb Lookback) bool {
	switch lb {
	case Lookback1mo, Lookback3mo, Lookback6mo, Lookback1y, Lookback2y,
		Lookback5y, Lookback10y, LookbackYTD, LookbackMax:
		return true
	default:
		return false
	}
}

// DefaultLookback gives roughly 125 daily returns, enough for a GARCH fit.
func DefaultLookback() Lookback { return Lookback6mo }

// NormalizeLookback converts raw string to a valid lookback (or default).
func NormalizeLookback(s string) Lookback {
	if s == "" {
		return DefaultLookback()
	}
	lb := Lookback(s)
	if IsValidLookback(lb) {
		return lb
	}
	return DefaultLookback()
}
