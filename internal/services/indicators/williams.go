package indicators

import (
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

type williamsRIndicator struct {
	close   techan.Indicator
	highest techan.Indicator
	lowest  techan.Indicator
}

// NewWilliamsRIndicator returns %R = (HH - close) / (HH - LL) * -100 over window bars.
func NewWilliamsRIndicator(series *techan.TimeSeries, window int) techan.Indicator {
	return williamsRIndicator{
		close:   techan.NewClosePriceIndicator(series),
		highest: techan.NewMaximumValueIndicator(techan.NewHighPriceIndicator(series), window),
		lowest:  techan.NewMinimumValueIndicator(techan.NewLowPriceIndicator(series), window),
	}
}

func (w williamsRIndicator) Calculate(index int) big.Decimal {
	hh := w.highest.Calculate(index).Float()
	ll := w.lowest.Calculate(index).Float()
	if hh == ll {
		return big.NewDecimal(-50)
	}
	return big.NewDecimal((hh - w.close.Calculate(index).Float()) / (hh - ll) * -100)
}
