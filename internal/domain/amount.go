package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of fractional digits carried by a token
// amount on chain. One whole token is 10^18 atomic units.
const AmountDecimals = 18

// Amounts on chain are u128 atoms, so at most 39 digits, 21 of them whole
// tokens.
const (
	maxAtomicDigits = 39
	maxWholeDigits  = maxAtomicDigits - AmountDecimals
)

var (
	atomicPattern = regexp.MustCompile(`^[0-9]+$`)
	humanPattern  = regexp.MustCompile(`^([0-9]+)(?:\.([0-9]+))?$`)
)

// Amount is a non-negative token quantity held in atomic units. Human
// readable values ("12.5") exist only at the API boundary: ParseHumanAmount
// on the way in, Human on the way out.
type Amount struct {
	atoms decimal.Decimal
}

// ZeroAmount returns an Amount of zero.
func ZeroAmount() Amount {
	return Amount{atoms: decimal.Zero}
}

// AmountFromAtomic parses an integer string of atomic units, the format the
// market application uses for share counts.
func AmountFromAtomic(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if !atomicPattern.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: atomic amount %q is not a non-negative integer", ErrInvalidAmount, clip(s))
	}
	if len(s) > maxAtomicDigits {
		return Amount{}, fmt.Errorf("%w: atomic amount has %d digits, max %d", ErrInvalidAmount, len(s), maxAtomicDigits)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return Amount{atoms: d}, nil
}

// ParseHumanAmount parses a decimal token quantity such as "10", "0.25" or
// the chain's own rendering "100." into atomic units. Only plain digits with
// an optional fraction are accepted: no sign, no exponent. More than
// AmountDecimals fractional digits is rejected rather than rounded.
func ParseHumanAmount(s string) (Amount, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	m := humanPattern.FindStringSubmatch(s)
	if m == nil {
		return Amount{}, fmt.Errorf("%w: %q is not a plain decimal number", ErrInvalidAmount, clip(s))
	}
	if len(m[1]) > maxWholeDigits {
		return Amount{}, fmt.Errorf("%w: %d whole digits, max %d", ErrInvalidAmount, len(m[1]), maxWholeDigits)
	}
	if len(m[2]) > AmountDecimals {
		return Amount{}, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, AmountDecimals)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return Amount{atoms: d.Shift(AmountDecimals)}, nil
}

// clip shortens rejected input echoed into error messages.
func clip(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// MustHumanAmount is ParseHumanAmount for constants; it panics on bad input.
func MustHumanAmount(s string) Amount {
	a, err := ParseHumanAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Atomic returns the amount as an integer string of atomic units.
func (a Amount) Atomic() string {
	return a.atoms.String()
}

// Human returns the amount in whole tokens without trailing zeros.
func (a Amount) Human() string {
	return a.atoms.Shift(-AmountDecimals).String()
}

// HumanFixed returns the amount in whole tokens rounded to places digits.
func (a Amount) HumanFixed(places int32) string {
	return a.atoms.Shift(-AmountDecimals).StringFixed(places)
}

func (a Amount) Add(b Amount) Amount {
	return Amount{atoms: a.atoms.Add(b.atoms)}
}

func (a Amount) Cmp(b Amount) int {
	return a.atoms.Cmp(b.atoms)
}

func (a Amount) IsZero() bool {
	return a.atoms.IsZero()
}

func (a Amount) String() string {
	return a.Human()
}

// MarshalJSON renders the amount as a quoted human-readable string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Human())
}

// UnmarshalJSON accepts a quoted human-readable string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := ParseHumanAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
