package slippage

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBps is the initial tolerance (0.5%).
	DefaultBps = 50
	// MaxBps is 100%.
	MaxBps = 10000
	// ParseLimitBps bounds custom input; anything at or above 50% is ignored.
	ParseLimitBps = 5000
	// RiskyLowBps and RiskyHighBps bound the comfortable range.
	RiskyLowBps  = 50
	RiskyHighBps = 500

	// DefaultDeadline is how long a submitted transaction stays valid.
	DefaultDeadline = 20 * time.Minute

	gasMarginBps = 1000
)

// Presets are the one-click tolerance choices.
var Presets = []int{10, 50, 100}

var (
	ErrInvalidInput    = errors.New("invalid slippage")
	ErrInvalidDeadline = errors.New("invalid deadline")
)

// Warning classifies a tolerance for display. Out-of-range values are
// flagged, never clamped.
type Warning int

const (
	WarningNone Warning = iota
	WarningInvalidInput
	WarningRiskyLow
	WarningRiskyHigh
)

func (w Warning) String() string {
	switch w {
	case WarningInvalidInput:
		return "Enter a valid slippage percentage"
	case WarningRiskyLow:
		return "Your transaction may fail"
	case WarningRiskyHigh:
		return "Your transaction may be frontrun"
	default:
		return ""
	}
}

// ParseCustom converts a percentage typed by the user ("0.2") into basis
// points (20). Digits beyond a hundredth of a percent are dropped.
func ParseCustom(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidInput)
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, text)
	}
	bps := value.Shift(2).IntPart()
	if value.IsNegative() || bps >= ParseLimitBps {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidInput, text)
	}
	return int(bps), nil
}

// Validate reports whether bps sits outside the comfortable range.
func Validate(bps int) Warning {
	switch {
	case bps < 0 || bps >= ParseLimitBps:
		return WarningInvalidInput
	case bps < RiskyLowBps:
		return WarningRiskyLow
	case bps > RiskyHighBps:
		return WarningRiskyHigh
	default:
		return WarningNone
	}
}

// CheckInput validates raw custom text against the tolerance currently in
// force; text that does not round-trip to bps is reported as invalid.
func CheckInput(text string, bps int) Warning {
	if strings.TrimSpace(text) != "" {
		parsed, err := ParseCustom(text)
		if err != nil || parsed != bps {
			return WarningInvalidInput
		}
	}
	return Validate(bps)
}

// EffectiveTolerance is zero when the deposit creates the pool, because the
// depositor sets the price.
func EffectiveTolerance(bps int, noLiquidity bool) int {
	if noLiquidity {
		return 0
	}
	return bps
}

// MinimumAmount is raw reduced by the tolerance, rounded down.
func MinimumAmount(raw *big.Int, bps int) *big.Int {
	return scale(raw, MaxBps-bps)
}

// MaximumAmount is raw increased by the tolerance, rounded down.
func MaximumAmount(raw *big.Int, bps int) *big.Int {
	return scale(raw, MaxBps+bps)
}

// Bounds returns the minimum and maximum acceptable amounts around raw.
func Bounds(raw *big.Int, bps int) (*big.Int, *big.Int) {
	return MinimumAmount(raw, bps), MaximumAmount(raw, bps)
}

func scale(raw *big.Int, numerator int) *big.Int {
	if raw == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(raw, big.NewInt(int64(numerator)))
	return out.Quo(out, big.NewInt(MaxBps))
}

// ParseCustomDeadline converts minutes typed by the user into a duration.
func ParseCustomDeadline(text string) (time.Duration, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeadline, text)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: %d minutes", ErrInvalidDeadline, minutes)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// Expiry returns the absolute deadline in unix seconds, measured from the
// chain's latest block time.
func Expiry(blockTime uint64, deadline time.Duration) *big.Int {
	out := new(big.Int).SetUint64(blockTime)
	return out.Add(out, big.NewInt(int64(deadline/time.Second)))
}

// GasMargin adds 10% to a gas estimate.
func GasMargin(estimate uint64) uint64 {
	out := new(big.Int).SetUint64(estimate)
	out.Mul(out, big.NewInt(MaxBps+gasMarginBps))
	out.Quo(out, big.NewInt(MaxBps))
	return out.Uint64()
}

// Policy is the tolerance and deadline in force for one transaction.
type Policy struct {
	Bps      int
	Deadline time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Bps: DefaultBps, Deadline: DefaultDeadline}
}
