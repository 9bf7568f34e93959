package membership

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

// Prefix is the fixed start of every membership number.
const Prefix = "ZF"

// TempPasswordLength is the length of generated temporary passwords.
const TempPasswordLength = 12

// numberSpace is how many distinct numbers exist (four digits).
const numberSpace = 10000

// numberPattern matches a valid membership number.
var numberPattern = regexp.MustCompile(`^ZF\d{4}$`)

// tempPasswordAlphabet omits characters that are easily confused when read aloud.
const tempPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// ErrNumbersExhausted is returned when no unused number could be found.
var ErrNumbersExhausted = errors.New("could not allocate a unique membership number")

// Valid reports whether s is a well-formed membership number.
func Valid(s string) bool {
	return numberPattern.MatchString(s)
}

// Generator creates membership numbers and temporary passwords from a random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from r, or crypto/rand when r is nil.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// Number draws one membership number.
// POST: Result matches ZF\d{4}
func (g *Generator) Number() (string, error) {
	n, err := rand.Int(g.rand, big.NewInt(numberSpace))
	if err != nil {
		return "", fmt.Errorf("generate membership number: %w", err)
	}
	return fmt.Sprintf("%s%04d", Prefix, n.Int64()), nil
}

// UniqueNumber draws numbers until taken reports one as free.
// PRE: maxAttempts > 0
// POST: Returns a number for which taken returned false, or ErrNumbersExhausted
func (g *Generator) UniqueNumber(maxAttempts int, taken func(string) (bool, error)) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		n, err := g.Number()
		if err != nil {
			return "", err
		}
		used, err := taken(n)
		if err != nil {
			return "", err
		}
		if !used {
			return n, nil
		}
	}
	return "", ErrNumbersExhausted
}

// TempPassword creates a random password that satisfies the account minimum length.
// POST: len(result) == TempPasswordLength
func (g *Generator) TempPassword() (string, error) {
	buf := make([]byte, TempPasswordLength)
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := range buf {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", fmt.Errorf("generate temporary password: %w", err)
		}
		buf[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
