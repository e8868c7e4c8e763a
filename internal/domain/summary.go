package domain

// RunSummary aggregates one resolution run for logging, the trigger
// endpoint, and run-history storage.
type RunSummary struct {
	Total     int            `json:"total"`
	WithPrice int            `json:"withPrice"`
	Nulls     int            `json:"nulls"`
	BySource  map[string]int `json:"bySource"`
}

// Summarize counts resolved and unresolved results per source. Every known
// source appears in BySource even when its count is zero.
func Summarize(results []PriceResult) RunSummary {
	sum := RunSummary{
		Total: len(results),
		BySource: map[string]int{
			string(SourceDexscreener): 0,
			string(SourceCoinGecko):   0,
			string(SourceCMC):         0,
		},
	}
	for _, r := range results {
		if !r.Known() {
			sum.Nulls++
			continue
		}
		sum.WithPrice++
		sum.BySource[string(r.Source)]++
	}
	return sum
}
