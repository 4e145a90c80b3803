package fuel

import (
	"math"

	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
)

// Meter tracks fuel consumption during contract execution
type Meter interface {
	// TryConsume charges fuel, failing without any partial charge when the limit would be exceeded
	TryConsume(fuel uint64) error
	// Refund records a refund; refunds are reconciled by the host
	Refund(amount int64)
	// Remaining returns the amount of fuel left
	Remaining() uint64
	Consumed() uint64
	Refunded() int64
	Limit() uint64
	// Disabled reports whether the limit is enforced
	Disabled() bool
}

// DefaultMeter is the default implementation of Meter
type DefaultMeter struct {
	limit    uint64
	consumed uint64
	refunded int64
	disabled bool
}

var _ Meter = (*DefaultMeter)(nil)

// NewDefaultMeter creates a fuel meter with the specified limit. A disabled meter still
// counts consumption but never refuses a charge.
func NewDefaultMeter(limit uint64, disabled bool) *DefaultMeter {
	return &DefaultMeter{
		limit:    limit,
		disabled: disabled,
	}
}

func (m *DefaultMeter) TryConsume(fuel uint64) error {
	consumed := saturatingAdd(m.consumed, fuel)
	if !m.disabled && consumed > m.limit {
		return &rterrors.FuelError{
			Wanted:    fuel,
			Available: m.Remaining(),
		}
	}
	m.consumed = consumed
	return nil
}

func (m *DefaultMeter) Refund(amount int64) {
	m.refunded += amount
}

func (m *DefaultMeter) Remaining() uint64 {
	if m.consumed >= m.limit {
		return 0
	}
	return m.limit - m.consumed
}

func (m *DefaultMeter) Consumed() uint64 { return m.consumed }

func (m *DefaultMeter) Refunded() int64 { return m.refunded }

func (m *DefaultMeter) Limit() uint64 { return m.limit }

func (m *DefaultMeter) Disabled() bool { return m.disabled }

// Report contains information about fuel usage
type Report struct {
	Limit     uint64
	Remaining uint64
	Used      uint64
	Refunded  int64
}

// Report snapshots the meter.
func (m *DefaultMeter) Report() Report {
	return Report{
		Limit:     m.limit,
		Remaining: m.Remaining(),
		Used:      m.consumed,
		Refunded:  m.refunded,
	}
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// SaturatingMul multiplies without wrapping.
func SaturatingMul(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}

// SaturatingAdd adds without wrapping.
func SaturatingAdd(a, b uint64) uint64 {
	return saturatingAdd(a, b)
}
