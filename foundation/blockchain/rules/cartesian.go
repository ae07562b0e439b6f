package rules

import (
	"math"
	"math/big"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// Unreachable is the fuel cost of a jump longer than the maximum distance.
const Unreachable int64 = -1

// Position is the location of a star system in cartesian space.
type Position [3]*big.Int

// Cartesian derives the position of the star system with the hash. The
// last digits of sha256("cartesian"+hash) are split into three equal
// groups read as hex.
func (r Rules) Cartesian(systemHash string) Position {
	h := signature.Hash("cartesian" + systemHash)

	d := r.CartesianDigits
	tail := h[len(h)-3*d:]

	var pos Position
	for i := range pos {
		pos[i], _ = new(big.Int).SetString(tail[i*d:(i+1)*d], 16)
	}

	return pos
}

// Distance returns the euclidean distance between two star systems rounded
// up to a whole number.
func (r Rules) Distance(originHash string, destinationHash string) float64 {
	a := r.Cartesian(originHash)
	b := r.Cartesian(destinationHash)

	sum := new(big.Int)
	for i := range a {
		delta := new(big.Int).Sub(a[i], b[i])
		sum.Add(sum, delta.Mul(delta, delta))
	}

	norm := new(big.Float).SetPrec(128).SetInt(sum)
	norm.Sqrt(norm)

	f, _ := norm.Float64()
	return math.Ceil(f)
}

// FuelCost returns the ships lost jumping between two star systems, or
// Unreachable when the systems are too far apart. The cost grows with the
// square root of the distance.
func (r Rules) FuelCost(originHash string, destinationHash string) int64 {
	distance := r.Distance(originHash, destinationHash)

	switch {
	case distance > r.JumpDistanceMax:
		return Unreachable
	case distance == r.JumpDistanceMax:
		return r.JumpCostMax
	}

	scalar := math.Sqrt(distance / r.JumpDistanceMax)
	span := float64(r.JumpCostMax - r.JumpCostMin)

	return int64(math.Ceil(float64(r.JumpCostMin) + span*scalar))
}
