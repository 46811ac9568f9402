package gex

// StrikeGEX is the dealer gamma exposure aggregated at one strike
type StrikeGEX struct {
	Strike  float64 `json:"strike"`
	CallGEX float64 `json:"callGex"`
	PutGEX  float64 `json:"putGex"`
	NetGEX  float64 `json:"netGex"`
	CallOI  int64   `json:"callOi"`
	PutOI   int64   `json:"putOi"`
}

// ExpirationGEX groups per-strike exposure for one expiration
type ExpirationGEX struct {
	Expiration string      `json:"expiration"`
	Strikes    []StrikeGEX `json:"strikes"`
	NetGEX     float64     `json:"netGex"`
}

// KeyLevels are the strike landmarks derived from the exposure profile
type KeyLevels struct {
	GammaWall  float64   `json:"gammaWall"`
	GammaFlip  float64   `json:"gammaFlip"`
	MaxPain    float64   `json:"maxPain"`
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// Summary totals the chain's exposure and aggregate Greeks
type Summary struct {
	TotalCallGEX float64 `json:"totalCallGex"`
	TotalPutGEX  float64 `json:"totalPutGex"`
	NetGEX       float64 `json:"netGex"`
	TotalDelta   float64 `json:"totalDelta"`
	TotalGamma   float64 `json:"totalGamma"`
	Contracts    int     `json:"contracts"`
	Skipped      int     `json:"skipped"`
}

// Report is the full GEX response for a ticker
type Report struct {
	Ticker       string          `json:"ticker"`
	SpotPrice    float64         `json:"spotPrice"`
	Summary      Summary         `json:"summary"`
	KeyLevels    KeyLevels       `json:"keyLevels"`
	ByExpiration []ExpirationGEX `json:"byExpiration"`
	Heatmap      *Heatmap        `json:"heatmap"`
}

// Heatmap is the strike-by-expiration net exposure grid. Cells are nil
// where no real strike lands within the snap distance.
type Heatmap struct {
	Expirations []string     `json:"expirations"` // ascending
	Strikes     []float64    `json:"strikes"`     // descending
	Cells       [][]*float64 `json:"cells"`       // [strike][expiration]
	FlowDelta   []float64    `json:"flowDelta"`   // aligned with Strikes
}
