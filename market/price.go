package market

import "math"

// Price is a pippete-encoded price: 1.23456 -> 123456.
// Integer encoding avoids float drift in fill comparisons and P/L sums.
type Price = int64

// Scale converts between quoted decimal prices and pippetes.
const Scale float64 = 100_000.0

func ToFloat(p Price) float64 {
	return float64(p) / Scale
}

func FromFloat(x float64) Price {
	if x < 0 {
		return Price(x*Scale - 0.5)
	}
	return Price(x*Scale + 0.5)
}

// PipSize is the size of one pip in price units, e.g. EUR_USD: 0.0001, USD_JPY: 0.01.
func PipSize(instrument string) float64 {
	meta, ok := Instruments[instrument]
	if !ok {
		return math.Pow10(-4)
	}
	return math.Pow10(meta.PipLocation)
}

// unitsPerPip is the number of pippetes per pip for the instrument.
func unitsPerPip(instrument string) float64 {
	return Scale * PipSize(instrument)
}

// Pips converts an encoded price delta to pips for the instrument.
func Pips(instrument string, delta Price) float64 {
	return float64(delta) / unitsPerPip(instrument)
}

// PipsToDelta converts pips to an encoded price delta.
func PipsToDelta(instrument string, pips float64) Price {
	return Price(pips*unitsPerPip(instrument) + 0.5)
}
