package domain

import "strings"

// TokenRef identifies one asset to price: a chain tag plus the contract or
// mint address, with optional provider slugs for identity-based lookups.
type TokenRef struct {
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Symbol      string `json:"symbol,omitempty"`
	CoinGeckoID string `json:"coingeckoId,omitempty"`
	CMCSlug     string `json:"cmcSlug,omitempty"`
}

// Normalize trims and lower-cases the lookup fields. Symbol is cosmetic and
// kept as-is.
func (t TokenRef) Normalize() TokenRef {
	t.Chain = strings.ToLower(strings.TrimSpace(t.Chain))
	t.Address = strings.ToLower(strings.TrimSpace(t.Address))
	t.Symbol = strings.TrimSpace(t.Symbol)
	t.CoinGeckoID = strings.ToLower(strings.TrimSpace(t.CoinGeckoID))
	t.CMCSlug = strings.ToLower(strings.TrimSpace(t.CMCSlug))
	return t
}

// Valid reports whether the ref may enter the resolution pipeline.
func (t TokenRef) Valid() bool {
	return t.Chain != "" && t.Address != ""
}

// CacheKey is the (chain, address) key used for caching and de-duplication.
func (t TokenRef) CacheKey() string {
	return t.Chain + ":" + t.Address
}
