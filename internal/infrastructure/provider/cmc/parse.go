package cmc

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

// The currency page embeds its data as JSON inside a __NEXT_DATA__ script
// tag. The payload shape has changed across site revisions, so parsing is a
// prioritized list of independent strategies: each one tries a single known
// shape and reports no-match instead of failing, and the first match wins.

type parser func(data []byte) (float64, bool)

var parsers = []parser{
	parseDetailStatistics,
	parseInfoStatistics,
	parsePriceField,
}

// ParsePrice extracts the USD price from a currency page body.
func ParsePrice(page []byte) (float64, bool) {
	data, ok := extractNextData(page)
	if !ok {
		return 0, false
	}
	for _, p := range parsers {
		if price, ok := p(data); ok && usable(price) {
			return price, true
		}
	}
	return 0, false
}

var nextDataOpen = regexp.MustCompile(`<script[^>]+id="__NEXT_DATA__"[^>]*>`)

func extractNextData(page []byte) ([]byte, bool) {
	loc := nextDataOpen.FindIndex(page)
	if loc == nil {
		return nil, false
	}
	rest := page[loc[1]:]
	end := bytes.Index(rest, []byte("</script>"))
	if end < 0 {
		return nil, false
	}
	return rest[:end], true
}

// props.pageProps.detailRes.detail.statistics.price — current page shape.
func parseDetailStatistics(data []byte) (float64, bool) {
	var v struct {
		Props struct {
			PageProps struct {
				DetailRes struct {
					Detail struct {
						Statistics struct {
							Price *float64 `json:"price"`
						} `json:"statistics"`
					} `json:"detail"`
				} `json:"detailRes"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, false
	}
	p := v.Props.PageProps.DetailRes.Detail.Statistics.Price
	if p == nil {
		return 0, false
	}
	return *p, true
}

// props.pageProps.info.statistics.price — older page shape.
func parseInfoStatistics(data []byte) (float64, bool) {
	var v struct {
		Props struct {
			PageProps struct {
				Info struct {
					Statistics struct {
						Price *float64 `json:"price"`
					} `json:"statistics"`
				} `json:"info"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, false
	}
	p := v.Props.PageProps.Info.Statistics.Price
	if p == nil {
		return 0, false
	}
	return *p, true
}

var priceField = regexp.MustCompile(`"price"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?)`)

// parsePriceField is the last resort: the first "price" number anywhere in
// the payload.
func parsePriceField(data []byte) (float64, bool) {
	m := priceField.FindSubmatch(data)
	if m == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func usable(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}
