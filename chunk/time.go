package chunk

import (
	"math"
	"math/big"
	"strconv"
	"time"
)

// SamplesToSeconds converts a sample count to exact seconds. A zero rate
// means n is already in seconds.
func SamplesToSeconds(n int64, rate int64) *big.Rat {
	if rate <= 0 {
		return new(big.Rat).SetInt64(n)
	}
	return big.NewRat(n, rate)
}

// ToSeconds returns base + n/rate.
func ToSeconds(n int64, rate int64, base *big.Rat) *big.Rat {
	out := SamplesToSeconds(n, rate)
	if base != nil {
		out.Add(out, base)
	}
	return out
}

// ToSamples converts seconds to the nearest sample index at rate, rounding
// halves away from zero.
func ToSamples(t *big.Rat, rate int64) int64 {
	x := new(big.Rat).Mul(t, new(big.Rat).SetInt64(rate))
	return roundRat(x)
}

// ToSampOrSec converts seconds to samples when rate is set, and returns
// the value in seconds otherwise.
func ToSampOrSec(t *big.Rat, rate int64) float64 {
	if rate <= 0 {
		f, _ := t.Float64()
		return f
	}
	return float64(ToSamples(t, rate))
}

// CeilSamples returns the first sample index at or after t at rate.
func CeilSamples(t *big.Rat, rate int64) int64 {
	x := new(big.Rat).Mul(t, new(big.Rat).SetInt64(rate))
	q, r := new(big.Int).QuoRem(x.Num(), x.Denom(), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}

// SamplesBetween returns (b - a) * rate as an exact rational.
func SamplesBetween(a, b *big.Rat, rate int64) *big.Rat {
	d := new(big.Rat).Sub(b, a)
	if rate > 0 {
		d.Mul(d, new(big.Rat).SetInt64(rate))
	}
	return d
}

// IsWholeSamples reports whether t maps to an integer sample index at rate.
func IsWholeSamples(t *big.Rat, rate int64) bool {
	x := new(big.Rat).Mul(t, new(big.Rat).SetInt64(rate))
	return x.IsInt()
}

// FromFloat converts a float64 number of seconds to a rational.
func FromFloat(seconds float64) *big.Rat {
	r := new(big.Rat)
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return r
	}
	return r.SetFloat64(seconds)
}

// FromDecimal converts seconds to the rational written by the shortest
// decimal form of the float, so a configured 2.2 is exactly 11/5.
func FromDecimal(seconds float64) *big.Rat {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return new(big.Rat)
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(seconds, 'g', -1, 64))
	if !ok {
		return FromFloat(seconds)
	}
	return r
}

// FromTime converts a wall-clock time to exact seconds since the Unix epoch.
func FromTime(t time.Time) *big.Rat {
	r := big.NewRat(int64(t.Nanosecond()), int64(time.Second))
	return r.Add(r, new(big.Rat).SetInt64(t.Unix()))
}

// ToTime converts exact seconds since the Unix epoch to a UTC time with
// microsecond resolution.
func ToTime(seconds *big.Rat) time.Time {
	usec := roundRat(new(big.Rat).Mul(seconds, big.NewRat(1_000_000, 1)))
	return time.UnixMicro(usec).UTC()
}

// ShiftEvents returns a copy of events with delta added to each start time.
func ShiftEvents(events []Event, delta float64) []Event {
	out := make([]Event, len(events))
	for i, ev := range events {
		ev.Start += delta
		out[i] = ev
	}
	return out
}

func roundRat(x *big.Rat) int64 {
	num := new(big.Int).Set(x.Num())
	den := x.Denom()
	neg := num.Sign() < 0
	if neg {
		num.Neg(num)
	}
	// floor((2*num + den) / (2*den)) rounds halves up on the magnitude
	num.Lsh(num, 1).Add(num, den)
	q := num.Quo(num, new(big.Int).Lsh(den, 1))
	if neg {
		q.Neg(q)
	}
	return q.Int64()
}
