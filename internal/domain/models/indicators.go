package models

// IndicatorSet holds the latest value of every technical indicator for one series.
type IndicatorSet struct {
	Close         float64 `json:"close"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BBUpper       float64 `json:"bb_upper"`
	BBMiddle      float64 `json:"bb_middle"`
	BBLower       float64 `json:"bb_lower"`
	ATR           float64 `json:"atr"`
	StochK        float64 `json:"stoch_k"`
	StochD        float64 `json:"stoch_d"`
	WilliamsR     float64 `json:"williams_r"`
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	EMA12         float64 `json:"ema_12"`
	EMA26         float64 `json:"ema_26"`
	Volume        float64 `json:"volume"`
	VolumeSMA20   float64 `json:"volume_sma_20"`
}

// Values flattens the set into name -> value, using the JSON names.
func (s IndicatorSet) Values() map[string]float64 {
	return map[string]float64{
		"close":          s.Close,
		"rsi":            s.RSI,
		"macd":           s.MACD,
		"macd_signal":    s.MACDSignal,
		"macd_histogram": s.MACDHistogram,
		"bb_upper":       s.BBUpper,
		"bb_middle":      s.BBMiddle,
		"bb_lower":       s.BBLower,
		"atr":            s.ATR,
		"stoch_k":        s.StochK,
		"stoch_d":        s.StochD,
		"williams_r":     s.WilliamsR,
		"sma_20":         s.SMA20,
		"sma_50":         s.SMA50,
		"ema_12":         s.EMA12,
		"ema_26":         s.EMA26,
		"volume":         s.Volume,
		"volume_sma_20":  s.VolumeSMA20,
	}
}
