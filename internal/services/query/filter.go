package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
)

// Filter is the predicate set applied to a store snapshot. All populated
// fields combine by AND; list-valued fields are OR within the list.
type Filter struct {
	Ticker string

	Calls bool
	Puts  bool

	TradeTypes []flow.TradeType

	MinPremium float64
	MaxPremium float64
	MinStrike  float64
	MaxStrike  float64
	MinBidAsk  float64
	MaxBidAsk  float64

	Moneyness []flow.Moneyness

	AboveAsk bool
	BelowBid bool

	VolGtOI bool

	ShortExpiry bool
	Leaps       bool
	DTEs        []int

	StockPriceRanges []string
	OIRanges         []string
	VolumeRanges     []string

	MinVolume     int64
	MaxDTE        int
	MinConfidence float64

	ExcludeSymbols map[string]struct{}
}

const (
	shortExpiryMaxDTE = 30
	leapsMinDTE       = 365
)

// FilterFromQuery builds a Filter from HTTP query params. Unknown params
// are ignored; malformed numbers leave the corresponding bound unset.
func FilterFromQuery(values url.Values) Filter {
	f := Filter{}

	if t := values.Get("ticker"); t != "" {
		f.Ticker = strings.ToUpper(t)
	} else if t := values.Get("filterTicker"); t != "" {
		f.Ticker = strings.ToUpper(t)
	}

	switch strings.ToLower(values.Get("type")) {
	case "calls", "call":
		f.Calls = true
	case "puts", "put":
		f.Puts = true
	}
	if qbool(values, "calls") {
		f.Calls = true
	}
	if qbool(values, "puts") {
		f.Puts = true
	}

	for _, raw := range qlist(values, "tradeType") {
		switch strings.ToLower(raw) {
		case "sweep", "sweeps":
			f.TradeTypes = append(f.TradeTypes, flow.TradeTypeSweep)
		case "block", "blocks":
			f.TradeTypes = append(f.TradeTypes, flow.TradeTypeBlock)
		case "split", "splits":
			f.TradeTypes = append(f.TradeTypes, flow.TradeTypeSplit)
		}
	}
	if qbool(values, "sweeps") {
		f.TradeTypes = append(f.TradeTypes, flow.TradeTypeSweep)
	}
	if qbool(values, "blocks") {
		f.TradeTypes = append(f.TradeTypes, flow.TradeTypeBlock)
	}
	if qbool(values, "splits") {
		f.TradeTypes = append(f.TradeTypes, flow.TradeTypeSplit)
	}

	f.MinPremium = qfloat(values, "minPremium")
	f.MaxPremium = qfloat(values, "maxPremium")
	f.MinStrike = qfloat(values, "minStrike")
	f.MaxStrike = qfloat(values, "maxStrike")
	f.MinBidAsk = qfloat(values, "minBidask")
	f.MaxBidAsk = qfloat(values, "maxBidask")

	if qbool(values, "itm") {
		f.Moneyness = append(f.Moneyness, flow.MoneynessITM)
	}
	if qbool(values, "otm") {
		f.Moneyness = append(f.Moneyness, flow.MoneynessOTM)
	}
	if qbool(values, "atm") {
		f.Moneyness = append(f.Moneyness, flow.MoneynessATM)
	}

	f.AboveAsk = qbool(values, "aboveAsk")
	f.BelowBid = qbool(values, "belowBid")
	f.VolGtOI = qbool(values, "volGtOi")
	f.ShortExpiry = qbool(values, "shortExpiry")
	f.Leaps = qbool(values, "leaps")

	for _, raw := range qlist(values, "dte") {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			f.DTEs = append(f.DTEs, n)
		}
	}

	f.StockPriceRanges = qlist(values, "stockPrice")
	f.OIRanges = qlist(values, "openInterest")
	f.VolumeRanges = qlist(values, "volume")

	f.MinVolume = int64(qfloat(values, "minVolume"))
	f.MaxDTE = int(qfloat(values, "filterMaxDte"))
	f.MinConfidence = qfloat(values, "minConfidence")

	if raw := qlist(values, "excludeSymbols"); len(raw) > 0 {
		f.ExcludeSymbols = make(map[string]struct{}, len(raw))
		for _, s := range raw {
			f.ExcludeSymbols[strings.ToUpper(s)] = struct{}{}
		}
	}

	return f
}

// Match reports whether a flow passes every active predicate
func (f Filter) Match(fl *flow.Flow) bool {
	if f.Ticker != "" && !strings.EqualFold(fl.Ticker, f.Ticker) {
		return false
	}
	if _, excluded := f.ExcludeSymbols[strings.ToUpper(fl.Ticker)]; excluded {
		return false
	}

	// both flags set means no kind filter
	if f.Calls != f.Puts {
		if f.Calls && fl.Kind != options.KindCall {
			return false
		}
		if f.Puts && fl.Kind != options.KindPut {
			return false
		}
	}

	if len(f.TradeTypes) > 0 && !containsTradeType(f.TradeTypes, fl.TradeType) {
		return false
	}

	if f.MinPremium > 0 && fl.Premium < f.MinPremium {
		return false
	}
	if f.MaxPremium > 0 && fl.Premium > f.MaxPremium {
		return false
	}
	if f.MinStrike > 0 && fl.Strike < f.MinStrike {
		return false
	}
	if f.MaxStrike > 0 && fl.Strike > f.MaxStrike {
		return false
	}

	if f.MinBidAsk > 0 || f.MaxBidAsk > 0 {
		spread := fl.Ask - fl.Bid
		if f.MinBidAsk > 0 && spread < f.MinBidAsk {
			return false
		}
		if f.MaxBidAsk > 0 && spread > f.MaxBidAsk {
			return false
		}
	}

	if len(f.Moneyness) > 0 && !containsMoneyness(f.Moneyness, fl.Moneyness) {
		return false
	}

	if f.AboveAsk && fl.Side != flow.SideAboveAsk {
		return false
	}
	if f.BelowBid && fl.Side != flow.SideBelowBid {
		return false
	}

	if f.VolGtOI && fl.Volume <= fl.OpenInterest {
		return false
	}

	if f.ShortExpiry && fl.DTE > shortExpiryMaxDTE {
		return false
	}
	if f.Leaps && fl.DTE < leapsMinDTE {
		return false
	}
	if len(f.DTEs) > 0 && !containsInt(f.DTEs, fl.DTE) {
		return false
	}
	if f.MaxDTE > 0 && fl.DTE > f.MaxDTE {
		return false
	}

	// a spot-price filter needs a spot price to check against
	if len(f.StockPriceRanges) > 0 {
		if !fl.SpotAvailable || !anyRange(f.StockPriceRanges, fl.Spot, priceRange) {
			return false
		}
	}
	if len(f.OIRanges) > 0 && !anyRange(f.OIRanges, float64(fl.OpenInterest), sizeRange) {
		return false
	}
	if len(f.VolumeRanges) > 0 && !anyRange(f.VolumeRanges, float64(fl.Volume), sizeRange) {
		return false
	}

	if f.MinVolume > 0 && fl.Volume < f.MinVolume {
		return false
	}
	if f.MinConfidence > 0 && fl.Score < f.MinConfidence {
		return false
	}

	return true
}

// priceRange evaluates the fixed spot-price buckets
func priceRange(name string, v float64) bool {
	switch name {
	case "<25":
		return v < 25
	case "25-75":
		return v >= 25 && v <= 75
	case "75-150":
		return v >= 75 && v <= 150
	case ">150":
		return v > 150
	}
	return false
}

// sizeRange evaluates the fixed volume/open-interest buckets
func sizeRange(name string, v float64) bool {
	switch name {
	case "<1k":
		return v < 1000
	case "1-5k":
		return v >= 1000 && v <= 5000
	case "5-25k":
		return v >= 5000 && v <= 25000
	case ">25k":
		return v > 25000
	}
	return false
}

func anyRange(names []string, v float64, eval func(string, float64) bool) bool {
	for _, n := range names {
		if eval(n, v) {
			return true
		}
	}
	return false
}

func containsTradeType(s []flow.TradeType, v flow.TradeType) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsMoneyness(s []flow.Moneyness, v flow.Moneyness) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func qbool(values url.Values, key string) bool {
	switch strings.ToLower(values.Get(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func qfloat(values url.Values, key string) float64 {
	raw := values.Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// qlist splits comma-separated and repeated params into one list
func qlist(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
