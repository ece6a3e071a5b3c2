package models

import (
	"encoding/json"
	"math"
	"time"
)

// PricePoint is a daily close. A missing close is NaN and travels as JSON null.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

type pricePointJSON struct {
	Date  time.Time `json:"date"`
	Close *float64  `json:"close"`
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	out := pricePointJSON{Date: p.Date}
	if !math.IsNaN(p.Close) && !math.IsInf(p.Close, 0) {
		c := p.Close
		out.Close = &c
	}
	return json.Marshal(out)
}

func (p *PricePoint) UnmarshalJSON(b []byte) error {
	var in pricePointJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	p.Date = in.Date
	p.Close = math.NaN()
	if in.Close != nil {
		p.Close = *in.Close
	}
	return nil
}

// Usable reports whether the close can take part in a return computation.
func (p PricePoint) Usable() bool {
	return !math.IsNaN(p.Close) && !math.IsInf(p.Close, 0) && p.Close > 0
}

// ReturnPoint is a percentage return dated at the later close.
type ReturnPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ReturnSeries is an ordered series of percentage returns.
type ReturnSeries []ReturnPoint

// Values returns the raw return values in order.
func (s ReturnSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
