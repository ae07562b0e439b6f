// Package difficulty implements the compact target encoding used by star
// logs, the proof of work comparison and the retarget arithmetic.
package difficulty

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// MaxFudge is the largest number of hex digits a target can be rotated by.
const MaxFudge = 8

// maximumTarget is the easiest target the network will ever ask for.
const maximumTarget = "00000000ffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

// Set of errors returned by the codec.
var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidInput      = errors.New("invalid input")
)

// =============================================================================

// Codec packs and unpacks targets. The fudge rotates the hex digits of every
// unpacked target so tests can run against trivially easy targets while
// still exercising the same encoding.
type Codec struct {
	fudge   int
	maximum *big.Int
}

// New constructs a codec for the specified fudge, which must be in [0, 8].
func New(fudge int) (Codec, error) {
	if fudge < 0 || fudge > MaxFudge {
		return Codec{}, fmt.Errorf("difficulty fudge must be a value from 0 to %d: got %d", MaxFudge, fudge)
	}

	maximum, _ := new(big.Int).SetString(maximumTarget, 16)

	return Codec{fudge: fudge, maximum: maximum}, nil
}

// Fudge returns the rotation the codec applies.
func (c Codec) Fudge() int {
	return c.fudge
}

// MaximumTarget returns the easiest target as the codec presents it.
func (c Codec) MaximumTarget() string {
	return c.rotate(toHex(c.maximum))
}

// Unpack decodes the packed difficulty into a 64 character hex target.
func (c Codec) Unpack(packed uint32) (string, error) {
	target, err := unpack(packed)
	if err != nil {
		return "", err
	}

	return c.rotate(toHex(target)), nil
}

// Pack encodes a 64 character hex target into its compact form.
func (c Codec) Pack(target string) (uint32, error) {
	if !signature.IsHash(target) {
		return 0, fmt.Errorf("%w: target %q is not 64 hex characters", ErrInvalidInput, target)
	}

	t, _ := new(big.Int).SetString(c.unrotate(strings.ToLower(target)), 16)

	return pack(t), nil
}

// MeetsTarget reports whether the hash satisfies the packed difficulty. The
// target's trailing zero digits are dropped and the hash prefix of the same
// length must be numerically smaller than what remains.
func (c Codec) MeetsTarget(hash string, packed uint32) (bool, error) {
	if !signature.IsHash(hash) {
		return false, fmt.Errorf("%w: hash %q is not 64 hex characters", ErrInvalidInput, hash)
	}

	target, err := c.Unpack(packed)
	if err != nil {
		return false, err
	}

	mask := strings.TrimRight(target, "0")
	if mask == "" {
		return false, nil
	}

	prefix, _ := new(big.Int).SetString(hash[:len(mask)], 16)
	limit, _ := new(big.Int).SetString(mask, 16)

	return prefix.Cmp(limit) < 0, nil
}

// Recalculate scales the previous difficulty by how long the last interval
// took compared with how long it should have taken. The elapsed time is
// clamped to a factor of four either way and the result never exceeds the
// maximum target.
func (c Codec) Recalculate(previous uint32, elapsed int64, duration int64) (uint32, error) {
	if duration <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive: got %d", ErrInvalidInput, duration)
	}

	lo := duration / 4
	hi := duration * 4
	switch {
	case elapsed < lo:
		elapsed = lo
	case elapsed > hi:
		elapsed = hi
	}

	target, err := unpack(previous)
	if err != nil {
		return 0, err
	}

	target.Mul(target, big.NewInt(elapsed))
	target.Div(target, big.NewInt(duration))

	if target.Cmp(c.maximum) > 0 {
		target.Set(c.maximum)
	}

	return pack(target), nil
}

// IsRetargetHeight reports whether a star log at this height starts a new
// difficulty interval.
func IsRetargetHeight(height uint64, interval uint64) bool {
	if interval == 0 {
		return false
	}
	return height%interval == 0
}

// =============================================================================

// unpack expands the compact form: the high byte is the byte length of the
// target and the low three bytes its most significant digits.
func unpack(packed uint32) (*big.Int, error) {
	exponent := packed >> 24
	mantissa := big.NewInt(int64(packed & 0x00ffffff))

	if exponent == 0 {
		exponent = 3
	}

	switch {
	case exponent <= 3:
		mantissa.Rsh(mantissa, uint(8*(3-exponent)))
	default:
		mantissa.Lsh(mantissa, uint(8*(exponent-3)))
	}

	if mantissa.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %#08x overflows 256 bits", ErrInvalidDifficulty, packed)
	}

	return mantissa, nil
}

// pack is the inverse of unpack. A mantissa with its top bit set is moved
// down one byte so it can never be read as negative.
func pack(target *big.Int) uint32 {
	size := uint32((target.BitLen() + 7) / 8)

	var mantissa uint32
	switch {
	case size <= 3:
		mantissa = uint32(target.Uint64()) << (8 * (3 - size))
	default:
		mantissa = uint32(new(big.Int).Rsh(target, uint(8*(size-3))).Uint64())
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}

	return size<<24 | mantissa
}

func toHex(v *big.Int) string {
	return common.Bytes2Hex(math.PaddedBigBytes(v, 32))
}

func (c Codec) rotate(s string) string {
	return s[c.fudge:] + s[:c.fudge]
}

func (c Codec) unrotate(s string) string {
	n := len(s) - c.fudge
	return s[n:] + s[:n]
}
