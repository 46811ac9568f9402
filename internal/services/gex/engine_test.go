package gex

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

var chainExpiry = time.Date(2026, 1, 16, 0, 0, 0, 0, time.Local)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

type chainContract struct {
	kind   options.Kind
	strike float64
	gamma  *float64
	delta  *float64
	oi     *int64
	spot   *float64
	expiry time.Time
}

func buildSnapshot(c chainContract) massive.OptionSnapshot {
	exp := c.expiry
	if exp.IsZero() {
		exp = chainExpiry
	}
	snap := massive.OptionSnapshot{
		Ticker:       options.FormatOCC("XYZ", exp, c.kind, c.strike),
		OpenInterest: c.oi,
	}
	if c.gamma != nil || c.delta != nil {
		snap.Greeks = &massive.Greeks{Gamma: c.gamma, Delta: c.delta}
	}
	if c.spot != nil {
		snap.UnderlyingAsset = &massive.UnderlyingAsset{Ticker: "XYZ", Price: c.spot}
	}
	return snap
}

type mockVendor struct {
	snapPages     []*massive.SnapshotResponse
	snapIdx       int
	contractsResp *massive.ContractsResponse
	contractsErr  error
	extraRequests []url.Values
}

func (m *mockVendor) OptionsSnapshot(ctx context.Context, underlying string, limit int, extra url.Values) (*massive.SnapshotResponse, error) {
	if extra != nil {
		m.extraRequests = append(m.extraRequests, extra)
	}
	if m.snapIdx >= len(m.snapPages) {
		return &massive.SnapshotResponse{Status: "OK"}, nil
	}
	p := m.snapPages[m.snapIdx]
	m.snapIdx++
	return p, nil
}

func (m *mockVendor) FollowSnapshotNext(ctx context.Context, nextURL string) (*massive.SnapshotResponse, error) {
	return m.OptionsSnapshot(ctx, "", massive.MaxPageSize, nil)
}

func (m *mockVendor) OptionContracts(ctx context.Context, underlying string, limit int) (*massive.ContractsResponse, error) {
	if m.contractsErr != nil {
		return nil, m.contractsErr
	}
	if m.contractsResp != nil {
		return m.contractsResp, nil
	}
	return &massive.ContractsResponse{Status: "OK"}, nil
}

func (m *mockVendor) FollowContractsNext(ctx context.Context, nextURL string) (*massive.ContractsResponse, error) {
	return &massive.ContractsResponse{Status: "OK"}, nil
}

func newTestEngine(t *testing.T, vendor *mockVendor) *Engine {
	t.Helper()
	require.NoError(t, logger.Init("error", "development"))
	return NewEngine(vendor, logger.Get())
}

func standardChain() []massive.OptionSnapshot {
	return []massive.OptionSnapshot{
		buildSnapshot(chainContract{kind: options.KindCall, strike: 105, gamma: fp(0.002), delta: fp(0.4), oi: ip(10), spot: fp(100)}),
		buildSnapshot(chainContract{kind: options.KindPut, strike: 95, gamma: fp(0.001), delta: fp(-0.3), oi: ip(30)}),
		buildSnapshot(chainContract{kind: options.KindCall, strike: 95, gamma: fp(0.001), delta: fp(0.6), oi: ip(5)}),
		// dropped: no gamma
		buildSnapshot(chainContract{kind: options.KindCall, strike: 100, delta: fp(0.5), oi: ip(50)}),
		// dropped: zero open interest
		buildSnapshot(chainContract{kind: options.KindPut, strike: 100, gamma: fp(0.003), delta: fp(-0.5), oi: ip(0)}),
	}
}

func TestCompute_ExposureAndSigns(t *testing.T) {
	vendor := &mockVendor{snapPages: []*massive.SnapshotResponse{
		{Results: standardChain()},
	}}
	e := newTestEngine(t, vendor)

	report, err := e.Compute(context.Background(), "xyz")
	require.NoError(t, err)

	assert.Equal(t, "XYZ", report.Ticker)
	assert.Equal(t, 100.0, report.SpotPrice)

	// exposure = gamma * OI * 100 * spot^2
	assert.InDelta(t, 25000, report.Summary.TotalCallGEX, 1e-6)
	assert.InDelta(t, -30000, report.Summary.TotalPutGEX, 1e-6)
	assert.InDelta(t, -5000, report.Summary.NetGEX, 1e-6)

	assert.InDelta(t, -200, report.Summary.TotalDelta, 1e-6)
	assert.InDelta(t, 5.5, report.Summary.TotalGamma, 1e-6)

	assert.Equal(t, 3, report.Summary.Contracts)
	assert.Equal(t, 2, report.Summary.Skipped)

	require.Len(t, report.ByExpiration, 1)
	strikes := report.ByExpiration[0].Strikes
	require.Len(t, strikes, 2)
	assert.Equal(t, 95.0, strikes[0].Strike)
	assert.InDelta(t, -25000, strikes[0].NetGEX, 1e-6)
	assert.Equal(t, 105.0, strikes[1].Strike)
	assert.InDelta(t, 20000, strikes[1].NetGEX, 1e-6)
}

func TestCompute_KeyLevels(t *testing.T) {
	vendor := &mockVendor{snapPages: []*massive.SnapshotResponse{
		{Results: standardChain()},
	}}
	e := newTestEngine(t, vendor)

	report, err := e.Compute(context.Background(), "XYZ")
	require.NoError(t, err)

	kl := report.KeyLevels
	assert.Equal(t, 95.0, kl.GammaWall)

	// zero crossing between 95 (-25000) and 105 (+20000)
	assert.InDelta(t, 95+25000.0*10/45000.0, kl.GammaFlip, 1e-6)

	// pain(95)=0, pain(105)=50
	assert.Equal(t, 95.0, kl.MaxPain)

	assert.Equal(t, []float64{95}, kl.Support)
	assert.Equal(t, []float64{105}, kl.Resistance)
}

func TestCompute_MedianStrikeSpotFallback(t *testing.T) {
	vendor := &mockVendor{snapPages: []*massive.SnapshotResponse{
		{Results: []massive.OptionSnapshot{
			buildSnapshot(chainContract{kind: options.KindCall, strike: 95, gamma: fp(0.001), oi: ip(10)}),
			buildSnapshot(chainContract{kind: options.KindPut, strike: 95, gamma: fp(0.001), oi: ip(10)}),
			buildSnapshot(chainContract{kind: options.KindCall, strike: 105, gamma: fp(0.001), oi: ip(10)}),
		}},
	}}
	e := newTestEngine(t, vendor)

	report, err := e.Compute(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, 95.0, report.SpotPrice)
}

func TestCompute_EmptyChainNotFound(t *testing.T) {
	e := newTestEngine(t, &mockVendor{})

	_, err := e.Compute(context.Background(), "XYZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCompute_AllContractsUnusableNotFound(t *testing.T) {
	vendor := &mockVendor{snapPages: []*massive.SnapshotResponse{
		{Results: []massive.OptionSnapshot{
			buildSnapshot(chainContract{kind: options.KindCall, strike: 100, oi: ip(10), spot: fp(100)}),
		}},
	}}
	e := newTestEngine(t, vendor)

	_, err := e.Compute(context.Background(), "XYZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFetchChain_PerExpirationFallback(t *testing.T) {
	near := chainExpiry
	far := chainExpiry.AddDate(0, 1, 0)

	vendor := &mockVendor{
		snapPages: []*massive.SnapshotResponse{
			// cursor pagination keeps yielding the same expiration
			{Results: []massive.OptionSnapshot{
				buildSnapshot(chainContract{kind: options.KindCall, strike: 100, gamma: fp(0.001), oi: ip(10), spot: fp(100), expiry: near}),
			}},
			// the per-expiration fetch for the missing date
			{Results: []massive.OptionSnapshot{
				buildSnapshot(chainContract{kind: options.KindCall, strike: 100, gamma: fp(0.001), oi: ip(10), expiry: far}),
			}},
		},
		contractsResp: &massive.ContractsResponse{
			Results: []massive.ContractRef{
				{ExpirationDate: near.Format("2006-01-02")},
				{ExpirationDate: far.Format("2006-01-02")},
			},
		},
	}
	e := newTestEngine(t, vendor)

	report, err := e.Compute(context.Background(), "XYZ")
	require.NoError(t, err)

	require.Len(t, vendor.extraRequests, 1)
	assert.Equal(t, far.Format("2006-01-02"), vendor.extraRequests[0].Get("expiration_date"))
	assert.Len(t, report.ByExpiration, 2)
}

func TestBuildHeatmap(t *testing.T) {
	expirations := []ExpirationGEX{
		{
			Expiration: "2026-01-16",
			Strikes: []StrikeGEX{
				{Strike: 95, NetGEX: -25000},
				{Strike: 105, NetGEX: 20000},
			},
		},
	}

	hm := buildHeatmap(expirations, 100)
	require.NotNil(t, hm)
	assert.Equal(t, []string{"2026-01-16"}, hm.Expirations)

	// descending strike axis on a 2.50 grid
	require.NotEmpty(t, hm.Strikes)
	assert.Equal(t, 200.0, hm.Strikes[0])
	assert.Greater(t, hm.Strikes[0], hm.Strikes[len(hm.Strikes)-1])

	find := func(strike float64) []*float64 {
		for i, k := range hm.Strikes {
			if k == strike {
				return hm.Cells[i]
			}
		}
		t.Fatalf("strike %v not on grid", strike)
		return nil
	}

	cell95 := find(95)
	require.NotNil(t, cell95[0])
	assert.InDelta(t, -25000, *cell95[0], 1e-6)

	cell105 := find(105)
	require.NotNil(t, cell105[0])
	assert.InDelta(t, 20000, *cell105[0], 1e-6)

	// no real strike within $0.50 of 97.50
	assert.Nil(t, find(97.5)[0])
}

func TestFlowDelta(t *testing.T) {
	v1, v2, v3 := 10.0, 25.0, -5.0

	assert.Equal(t, 0.0, flowDelta([]*float64{nil, nil}))
	assert.Equal(t, 0.0, flowDelta([]*float64{&v1}))
	assert.Equal(t, -15.0, flowDelta([]*float64{&v1, &v2, &v3}))
	assert.Equal(t, 15.0, flowDelta([]*float64{nil, &v1, &v2, nil}))
}

func TestNearestWithin(t *testing.T) {
	sorted := []float64{95, 100, 105}

	v, ok := nearestWithin(sorted, 100.4, 0.5)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	v, ok = nearestWithin(sorted, 104.6, 0.5)
	require.True(t, ok)
	assert.Equal(t, 105.0, v)

	_, ok = nearestWithin(sorted, 97.5, 0.5)
	assert.False(t, ok)

	_, ok = nearestWithin(nil, 100, 0.5)
	assert.False(t, ok)
}
