package gex

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

const (
	// chainPageBudget bounds snapshot pagination for a full chain
	chainPageBudget = 100

	// contractsPageBudget bounds the expiration enumeration
	contractsPageBudget = 10

	// perExpirationCap bounds the per-expiration fallback fetches
	perExpirationCap = 25

	// interPagePause spaces chain pages to stay under vendor limits
	interPagePause = 50 * time.Millisecond

	contractMultiplier = 100
)

// VendorAPI is the slice of the vendor client the GEX engine needs
type VendorAPI interface {
	OptionsSnapshot(ctx context.Context, underlying string, limit int, extra url.Values) (*massive.SnapshotResponse, error)
	FollowSnapshotNext(ctx context.Context, nextURL string) (*massive.SnapshotResponse, error)
	OptionContracts(ctx context.Context, underlying string, limit int) (*massive.ContractsResponse, error)
	FollowContractsNext(ctx context.Context, nextURL string) (*massive.ContractsResponse, error)
}

// Engine computes dealer gamma exposure from full option chains
type Engine struct {
	vendor VendorAPI
	log    *logger.Logger
}

// NewEngine creates a GEX engine
func NewEngine(vendor VendorAPI, log *logger.Logger) *Engine {
	return &Engine{
		vendor: vendor,
		log:    log.With("component", "gex_engine"),
	}
}

// contractObs is one usable chain entry after validation
type contractObs struct {
	kind       options.Kind
	strike     float64
	expiration string
	gamma      float64
	delta      float64
	oi         int64
}

// Compute fetches the chain and builds the full exposure report
func (e *Engine) Compute(ctx context.Context, ticker string) (*Report, error) {
	ticker = strings.ToUpper(ticker)

	snaps, err := e.fetchChain(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no option chain for %s", ticker)
	}

	spot, ok := resolveSpot(snaps)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no spot price for %s", ticker)
	}

	obs, skipped := validateChain(ticker, snaps)
	if len(obs) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no usable contracts for %s", ticker)
	}

	report := assemble(ticker, spot, obs)
	report.Summary.Skipped = skipped
	report.Heatmap = buildHeatmap(report.ByExpiration, spot)
	return report, nil
}

// fetchChain pages through the snapshot endpoint. When pagination yields
// a single expiration but the reference endpoint lists more, the missing
// expirations are fetched one by one.
func (e *Engine) fetchChain(ctx context.Context, ticker string) ([]massive.OptionSnapshot, error) {
	expirations, err := e.listExpirations(ctx, ticker)
	if err != nil {
		e.log.Debugw("Expiration enumeration failed", "ticker", ticker, "error", err)
	}

	var snaps []massive.OptionSnapshot
	resp, err := e.vendor.OptionsSnapshot(ctx, ticker, massive.MaxPageSize, nil)
	if err != nil {
		return nil, err
	}
	snaps = append(snaps, resp.Results...)

	for page := 1; page < chainPageBudget && resp.NextURL != ""; page++ {
		if err := pause(ctx, interPagePause); err != nil {
			return snaps, nil
		}
		resp, err = e.vendor.FollowSnapshotNext(ctx, resp.NextURL)
		if err != nil {
			e.log.Warnw("Chain pagination aborted", "ticker", ticker, "page", page, "error", err)
			break
		}
		snaps = append(snaps, resp.Results...)
	}

	if len(expirations) > 1 && countExpirations(snaps) <= 1 {
		snaps = e.fetchPerExpiration(ctx, ticker, expirations, snaps)
	}
	return snaps, nil
}

// listExpirations enumerates distinct expiration dates from the contracts
// reference endpoint
func (e *Engine) listExpirations(ctx context.Context, ticker string) ([]string, error) {
	seen := make(map[string]struct{})

	resp, err := e.vendor.OptionContracts(ctx, ticker, massive.MaxPageSize)
	if err != nil {
		return nil, err
	}
	collectExpirations(seen, resp.Results)

	for page := 1; page < contractsPageBudget && resp.NextURL != ""; page++ {
		resp, err = e.vendor.FollowContractsNext(ctx, resp.NextURL)
		if err != nil {
			break
		}
		collectExpirations(seen, resp.Results)
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) fetchPerExpiration(ctx context.Context, ticker string, expirations []string, snaps []massive.OptionSnapshot) []massive.OptionSnapshot {
	have := make(map[string]struct{})
	for idx := range snaps {
		have[snapExpiration(&snaps[idx])] = struct{}{}
	}

	fetched := 0
	for _, date := range expirations {
		if fetched >= perExpirationCap {
			break
		}
		if _, ok := have[date]; ok {
			continue
		}
		if err := pause(ctx, interPagePause); err != nil {
			return snaps
		}

		extra := url.Values{}
		extra.Set("expiration_date", date)
		resp, err := e.vendor.OptionsSnapshot(ctx, ticker, massive.MaxPageSize, extra)
		if err != nil {
			e.log.Debugw("Per-expiration fetch failed", "ticker", ticker, "expiration", date, "error", err)
			continue
		}
		snaps = append(snaps, resp.Results...)
		fetched++
	}
	return snaps
}

// resolveSpot takes the underlying price from any contract carrying one,
// falling back to the median strike of the chain
func resolveSpot(snaps []massive.OptionSnapshot) (float64, bool) {
	for idx := range snaps {
		if sp, ok := snaps[idx].ResolveSpot(); ok {
			return sp, true
		}
	}

	strikes := make([]float64, 0, len(snaps))
	for idx := range snaps {
		parsed, err := options.ParseOCC(snaps[idx].ContractSymbol())
		if err != nil {
			continue
		}
		strikes = append(strikes, parsed.Strike)
	}
	if len(strikes) == 0 {
		return 0, false
	}

	median, err := stats.Median(strikes)
	if err != nil || median <= 0 {
		return 0, false
	}
	return median, true
}

// validateChain keeps contracts with a real vendor gamma and nonzero OI.
// There is no IV-derived gamma fallback for exposure totals.
func validateChain(ticker string, snaps []massive.OptionSnapshot) ([]contractObs, int) {
	obs := make([]contractObs, 0, len(snaps))
	skipped := 0

	for idx := range snaps {
		s := &snaps[idx]
		parsed, err := options.ParseOCC(s.ContractSymbol())
		if err != nil {
			skipped++
			continue
		}

		gamma, ok := s.ResolveGamma()
		if !ok || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
			skipped++
			continue
		}

		oi := s.ResolveOpenInterest()
		if oi <= 0 {
			skipped++
			continue
		}

		delta, _ := s.ResolveDelta()
		obs = append(obs, contractObs{
			kind:       s.ResolveKind(parsed),
			strike:     s.ResolveStrike(parsed),
			expiration: s.ResolveExpiry(parsed).Format("2006-01-02"),
			gamma:      gamma,
			delta:      delta,
			oi:         oi,
		})
	}
	return obs, skipped
}

// assemble groups observations and derives totals and key levels
func assemble(ticker string, spot float64, obs []contractObs) *Report {
	type strikeKey struct {
		expiration string
		strike     float64
	}
	perStrike := make(map[strikeKey]*StrikeGEX)
	spotSq := spot * spot

	summary := Summary{Contracts: len(obs)}
	for _, o := range obs {
		exposure := o.gamma * float64(o.oi) * contractMultiplier * spotSq
		summary.TotalDelta += o.delta * float64(o.oi) * contractMultiplier
		summary.TotalGamma += o.gamma * float64(o.oi) * contractMultiplier

		key := strikeKey{o.expiration, o.strike}
		cell, ok := perStrike[key]
		if !ok {
			cell = &StrikeGEX{Strike: o.strike}
			perStrike[key] = cell
		}

		if o.kind == options.KindCall {
			cell.CallGEX += exposure
			cell.CallOI += o.oi
			summary.TotalCallGEX += exposure
		} else {
			// dealer short puts carry negative gamma exposure
			cell.PutGEX -= exposure
			cell.PutOI += o.oi
			summary.TotalPutGEX -= exposure
		}
	}
	summary.NetGEX = summary.TotalCallGEX + summary.TotalPutGEX

	byExp := make(map[string]*ExpirationGEX)
	for key, cell := range perStrike {
		cell.NetGEX = cell.CallGEX + cell.PutGEX
		exp, ok := byExp[key.expiration]
		if !ok {
			exp = &ExpirationGEX{Expiration: key.expiration}
			byExp[key.expiration] = exp
		}
		exp.Strikes = append(exp.Strikes, *cell)
		exp.NetGEX += cell.NetGEX
	}

	expirations := make([]ExpirationGEX, 0, len(byExp))
	for _, exp := range byExp {
		sort.Slice(exp.Strikes, func(i, j int) bool {
			return exp.Strikes[i].Strike < exp.Strikes[j].Strike
		})
		expirations = append(expirations, *exp)
	}
	sort.Slice(expirations, func(i, j int) bool {
		return expirations[i].Expiration < expirations[j].Expiration
	})

	return &Report{
		Ticker:       ticker,
		SpotPrice:    spot,
		Summary:      summary,
		KeyLevels:    keyLevels(spot, expirations),
		ByExpiration: expirations,
	}
}

// keyLevels derives landmarks from per-strike net exposure aggregated
// across expirations
func keyLevels(spot float64, expirations []ExpirationGEX) KeyLevels {
	net := make(map[float64]float64)
	callOI := make(map[float64]int64)
	putOI := make(map[float64]int64)

	for _, exp := range expirations {
		for _, s := range exp.Strikes {
			net[s.Strike] += s.NetGEX
			callOI[s.Strike] += s.CallOI
			putOI[s.Strike] += s.PutOI
		}
	}

	strikes := make([]float64, 0, len(net))
	for k := range net {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)

	kl := KeyLevels{}

	// gamma wall: largest absolute net exposure
	var wallAbs float64
	for _, k := range strikes {
		if a := math.Abs(net[k]); a > wallAbs {
			wallAbs = a
			kl.GammaWall = k
		}
	}

	// gamma flip: interpolated zero crossing scanning strikes in order
	for i := 0; i+1 < len(strikes); i++ {
		g0, g1 := net[strikes[i]], net[strikes[i+1]]
		if g0 == 0 {
			kl.GammaFlip = strikes[i]
			break
		}
		if (g0 < 0) != (g1 < 0) {
			k0, k1 := strikes[i], strikes[i+1]
			kl.GammaFlip = k0 + (0-g0)*(k1-k0)/(g1-g0)
			break
		}
	}

	kl.MaxPain = maxPain(strikes, callOI, putOI)
	kl.Support = topAbs(strikes, net, func(k float64) bool { return k < spot })
	kl.Resistance = topAbs(strikes, net, func(k float64) bool { return k > spot })
	return kl
}

// maxPain finds the candidate strike minimising total option-holder value
func maxPain(strikes []float64, callOI, putOI map[float64]int64) float64 {
	best, bestPain := 0.0, math.Inf(1)
	for _, k := range strikes {
		pain := 0.0
		for _, s := range strikes {
			pain += math.Max(0, k-s) * float64(callOI[s])
			pain += math.Max(0, s-k) * float64(putOI[s])
		}
		if pain < bestPain {
			bestPain = pain
			best = k
		}
	}
	return best
}

// topAbs returns up to three strikes on one side of spot, ranked by
// absolute net exposure
func topAbs(strikes []float64, net map[float64]float64, side func(float64) bool) []float64 {
	var cands []float64
	for _, k := range strikes {
		if side(k) {
			cands = append(cands, k)
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		return math.Abs(net[cands[i]]) > math.Abs(net[cands[j]])
	})
	if len(cands) > 3 {
		cands = cands[:3]
	}
	return cands
}

func collectExpirations(seen map[string]struct{}, refs []massive.ContractRef) {
	for _, r := range refs {
		if r.ExpirationDate != "" {
			seen[r.ExpirationDate] = struct{}{}
		}
	}
}

func countExpirations(snaps []massive.OptionSnapshot) int {
	seen := make(map[string]struct{})
	for idx := range snaps {
		if d := snapExpiration(&snaps[idx]); d != "" {
			seen[d] = struct{}{}
		}
	}
	return len(seen)
}

func snapExpiration(s *massive.OptionSnapshot) string {
	parsed, err := options.ParseOCC(s.ContractSymbol())
	if err != nil {
		return ""
	}
	return s.ResolveExpiry(parsed).Format("2006-01-02")
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
