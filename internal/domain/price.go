package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Source identifies the provider a price came from.
type Source string

const (
	SourceDexscreener Source = "dexscreener"
	SourceCoinGecko   Source = "coingecko"
	SourceCMC         Source = "cmc"

	// SourceUnknown marks a result with no usable price.
	SourceUnknown Source = ""
)

// MarshalJSON renders the unknown source as JSON null, matching the
// canonical output format.
func (s Source) MarshalJSON() ([]byte, error) {
	if s == SourceUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts both null and a plain string.
func (s *Source) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = SourceUnknown
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Source(v)
	return nil
}

// PriceResult is the canonical output record for one token. Created once per
// resolution pass and immutable afterward.
type PriceResult struct {
	Chain    string    `json:"chain"`
	Address  string    `json:"address"`
	Symbol   string    `json:"symbol,omitempty"`
	PriceUSD *float64  `json:"priceUsd"`
	Source   Source    `json:"source"`
	At       time.Time `json:"at"`
}

// Known reports whether the result carries a usable price.
func (r PriceResult) Known() bool {
	return r.PriceUSD != nil
}

// NewPriceResult builds the canonical record: lower-cases the address, stamps
// the current time, and enforces that source is unknown exactly when the
// price is unknown. A non-finite or negative price is treated as unknown.
func NewPriceResult(chain, address, symbol string, priceUSD *float64, source Source) PriceResult {
	ref := TokenRef{Chain: chain, Address: address, Symbol: symbol}.Normalize()

	if priceUSD != nil {
		p := *priceUSD
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			priceUSD = nil
		} else {
			priceUSD = &p
		}
	}
	if priceUSD == nil {
		source = SourceUnknown
	} else if source == SourceUnknown {
		priceUSD = nil
	}

	return PriceResult{
		Chain:    ref.Chain,
		Address:  ref.Address,
		Symbol:   ref.Symbol,
		PriceUSD: priceUSD,
		Source:   source,
		At:       time.Now().UTC(),
	}
}
