package usecase

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"PolyChannel/internal/domain/errs"
	drepo "PolyChannel/internal/domain/repository"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// MaxAssetsPerRun bounds one batch.
const MaxAssetsPerRun = 100

// RunConfig holds the per-run options. It is validated once, at the start of Run.
type RunConfig struct {
	Interval     drepo.Interval `default:"1d" validate:"required"`
	LookbackDays int            `default:"365" validate:"gte=1,lte=3650"`
	Workers      int            `validate:"gte=0,lte=256"`
	Correlation  bool           `default:"true"`
	// Seed feeds every asset's search and is echoed in the run summary.
	Seed int64
}

var validate = validator.New()

// DefaultRunConfig returns the defaults with one worker per CPU.
func DefaultRunConfig() RunConfig {
	var c RunConfig
	_ = defaults.Set(&c)
	c.Workers = runtime.NumCPU()
	return c
}

// Normalize fills zero values and checks the result.
func (c *RunConfig) Normalize() error {
	if c.Interval == "" {
		c.Interval = drepo.DefaultInterval()
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if _, err := drepo.ParseInterval(string(c.Interval)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", errs.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err)
	}
	return nil
}
