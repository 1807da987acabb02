package models

import "time"

type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Confirmation labels attached to BUY/SELL signals.
const (
	ConfirmRSIOversold   = "RSI oversold"
	ConfirmRSIOverbought = "RSI overbought"
	ConfirmMACDMomentum  = "MACD momentum"
	ConfirmVolume        = "Volume confirmation"
	ConfirmBullishTrend  = "BULLISH trend"
	ConfirmBearishTrend  = "BEARISH trend"
)

// Signal is the classification of the current price against an optimized channel.
type Signal struct {
	Symbol          string     `json:"symbol"`
	Signal          SignalType `json:"signal"`
	CurrentPrice    float64    `json:"current_price"`
	UpperBand       float64    `json:"upper_band"`
	LowerBand       float64    `json:"lower_band"`
	Centerline      float64    `json:"centerline"`
	PotentialReturn float64    `json:"potential_return"`
	SignalStrength  float64    `json:"signal_strength"`
	RiskLevel       RiskLevel  `json:"risk_level"`
	Confirmations   []string   `json:"confirmations"`
	Timestamp       time.Time  `json:"timestamp"`
}
