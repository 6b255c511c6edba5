package money

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// Bps is a ratio in basis points (1/10000).
type Bps uint64

// Valid reports whether b is at most 100%.
func (b Bps) Valid() bool { return b <= BpsDenominator }

// MulBps returns floor(a*b/10000).
func MulBps(a Amount, b Bps) (Amount, error) {
	return MulDiv(a, FromUint64(uint64(b)), FromUint64(BpsDenominator))
}

// RatioBps returns floor(num*10000/den), or 0 when den is 0.
func RatioBps(num, den Amount) (Amount, error) {
	if den.IsZero() {
		return Zero(), nil
	}
	return MulDiv(num, FromUint64(BpsDenominator), den)
}
