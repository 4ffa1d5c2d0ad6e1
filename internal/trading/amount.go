package trading

import "math/big"

// ParseAmount parses an integer amount string in smallest units. Returns a
// typed error for anything that is not a positive integer.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, Errorf(ErrUnknown, "amount %q is not an integer", s)
	}
	if v.Sign() <= 0 {
		return nil, Errorf(ErrUnknown, "amount must be positive, got %s", s)
	}
	return v, nil
}
