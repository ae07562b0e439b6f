package difficulty_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/difficulty"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const duration = 1209600

// normalized difficulties have a mantissa without its top bit set.
var normalized = []uint32{
	0x1d00ffff,
	0x1b0404cb,
	0x1c7fffff,
	0x1a05db8b,
	0x03123456,
	0x02008000,
	0x1d000001,
}

// =============================================================================

func Test_New(t *testing.T) {
	for _, fudge := range []int{-1, 9, 64} {
		if _, err := difficulty.New(fudge); err == nil {
			t.Fatalf("Should reject a fudge of %d.", fudge)
		}
	}

	for fudge := 0; fudge <= difficulty.MaxFudge; fudge++ {
		if _, err := difficulty.New(fudge); err != nil {
			t.Fatalf("Should accept a fudge of %d: %s", fudge, err)
		}
	}
}

func Test_Unpack(t *testing.T) {
	tt := []struct {
		name   string
		fudge  int
		packed uint32
		exp    string
	}{
		{"start", 0, 0x1d00ffff, "00000000ffff" + strings.Repeat("0", 52)},
		{"start fudged", 8, 0x1d00ffff, "ffff" + strings.Repeat("0", 60)},
		{"zero exponent", 0, 0x00000042, strings.Repeat("0", 58) + "000042"},
		{"small exponent", 0, 0x01120000, strings.Repeat("0", 62) + "12"},
	}

	t.Log("Given the need to unpack compact difficulties.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				codec, err := difficulty.New(tst.fudge)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to construct a codec: %s", failed, testID, err)
				}

				got, err := codec.Unpack(tst.packed)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to unpack %#08x: %s", failed, testID, tst.packed, err)
				}

				if got != tst.exp {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get back the right target.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right target.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_UnpackOverflow(t *testing.T) {
	codec, _ := difficulty.New(0)

	if _, err := codec.Unpack(0xff123456); !errors.Is(err, difficulty.ErrInvalidDifficulty) {
		t.Fatalf("Should reject a target wider than 256 bits: %v", err)
	}
}

func Test_RoundTrip(t *testing.T) {
	t.Log("Given the need to pack what was unpacked.")
	{
		for fudge := 0; fudge <= difficulty.MaxFudge; fudge++ {
			codec, err := difficulty.New(fudge)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to construct a codec: %s", failed, err)
			}

			for _, d := range normalized {
				target, err := codec.Unpack(d)
				if err != nil {
					t.Fatalf("\t%s\tFudge %d:\tShould be able to unpack %#08x: %s", failed, fudge, d, err)
				}

				packed, err := codec.Pack(target)
				if err != nil {
					t.Fatalf("\t%s\tFudge %d:\tShould be able to pack %s: %s", failed, fudge, target, err)
				}

				again, err := codec.Unpack(packed)
				if err != nil {
					t.Fatalf("\t%s\tFudge %d:\tShould be able to unpack %#08x: %s", failed, fudge, packed, err)
				}

				if again != target {
					t.Logf("\t%s\tFudge %d:\tgot: %s", failed, fudge, again)
					t.Logf("\t%s\tFudge %d:\texp: %s", failed, fudge, target)
					t.Fatalf("\t%s\tFudge %d:\tShould decode to the same target for %#08x.", failed, fudge, d)
				}
			}
			t.Logf("\t%s\tFudge %d:\tShould decode every packed value to the same target.", success, fudge)
		}
	}
}

func Test_PackNormalizes(t *testing.T) {
	codec, _ := difficulty.New(0)

	target, _ := codec.Unpack(0x1d000001)
	packed, err := codec.Pack(target)
	if err != nil {
		t.Fatalf("Should be able to pack: %s", err)
	}

	if packed != 0x1b010000 {
		t.Logf("got: %#08x", packed)
		t.Logf("exp: %#08x", 0x1b010000)
		t.Fatalf("Should strip leading zero bytes from the mantissa.")
	}

	// 0x80 needs a leading zero byte to keep the sign bit clear.
	target = strings.Repeat("0", 62) + "80"
	packed, _ = codec.Pack(target)
	if packed != 0x02008000 {
		t.Logf("got: %#08x", packed)
		t.Logf("exp: %#08x", 0x02008000)
		t.Fatalf("Should shift the mantissa when its top bit is set.")
	}

	if _, err := codec.Pack("xyz"); !errors.Is(err, difficulty.ErrInvalidInput) {
		t.Fatalf("Should reject a malformed target: %v", err)
	}
}

func Test_MeetsTarget(t *testing.T) {
	tt := []struct {
		name  string
		fudge int
		hash  string
		exp   bool
	}{
		{"below", 0, "00000000aaaa" + strings.Repeat("f", 52), true},
		{"equal prefix", 0, "00000000ffff" + strings.Repeat("0", 52), false},
		{"above", 0, "00000001" + strings.Repeat("0", 56), false},
		{"fudged below", 8, "fffe" + strings.Repeat("f", 60), true},
		{"fudged equal", 8, "ffff" + strings.Repeat("0", 60), false},
		{"upper case", 8, "ABCD" + strings.Repeat("F", 60), true},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			codec, _ := difficulty.New(tst.fudge)

			got, err := codec.MeetsTarget(tst.hash, 0x1d00ffff)
			if err != nil {
				t.Fatalf("Should be able to compare the hash: %s", err)
			}

			if got != tst.exp {
				t.Logf("got: %v", got)
				t.Logf("exp: %v", tst.exp)
				t.Fatalf("Should get back the right answer for %s.", tst.hash)
			}
		})
	}

	codec, _ := difficulty.New(0)
	if _, err := codec.MeetsTarget("abc", 0x1d00ffff); !errors.Is(err, difficulty.ErrInvalidInput) {
		t.Fatalf("Should reject a hash that is not 64 hex characters: %v", err)
	}

	if ok, _ := codec.MeetsTarget(strings.Repeat("0", 64), 0); ok {
		t.Fatalf("Should never meet an empty target.")
	}
}

func Test_Recalculate(t *testing.T) {
	codec, _ := difficulty.New(0)

	t.Log("Given the need to retarget difficulties.")
	{
		for _, d := range []uint32{0x1d00ffff, 0x1b0404cb, 0x1c7fffff, 0x1a05db8b} {
			got, err := codec.Recalculate(d, duration, duration)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to recalculate %#08x: %s", failed, d, err)
			}

			if got != d {
				t.Logf("\t%s\tgot: %#08x", failed, got)
				t.Logf("\t%s\texp: %#08x", failed, d)
				t.Fatalf("\t%s\tShould not drift when elapsed equals the duration.", failed)
			}
		}
		t.Logf("\t%s\tShould not drift when elapsed equals the duration.", success)

		fast, _ := codec.Recalculate(0x1b0404cb, 1, duration)
		quarter, _ := codec.Recalculate(0x1b0404cb, duration/4, duration)
		if fast != quarter {
			t.Fatalf("\t%s\tShould clamp a short interval to a quarter of the duration.", failed)
		}

		slow, _ := codec.Recalculate(0x1b0404cb, duration*100, duration)
		four, _ := codec.Recalculate(0x1b0404cb, duration*4, duration)
		if slow != four {
			t.Fatalf("\t%s\tShould clamp a long interval to four times the duration.", failed)
		}
		t.Logf("\t%s\tShould clamp the elapsed time.", success)

		easier, _ := codec.Recalculate(0x1d00ffff, duration*4, duration)
		if easier != 0x1d00ffff {
			t.Logf("\t%s\tgot: %#08x", failed, easier)
			t.Fatalf("\t%s\tShould never exceed the maximum target.", failed)
		}
		t.Logf("\t%s\tShould never exceed the maximum target.", success)

		if _, err := codec.Recalculate(0x1d00ffff, duration, 0); err == nil {
			t.Fatalf("\t%s\tShould reject a zero duration.", failed)
		}
	}
}

func Test_IsRetargetHeight(t *testing.T) {
	if !difficulty.IsRetargetHeight(10080, 10080) {
		t.Fatalf("Should retarget at the interval.")
	}

	if difficulty.IsRetargetHeight(10081, 10080) {
		t.Fatalf("Should not retarget inside the interval.")
	}

	if !difficulty.IsRetargetHeight(0, 10080) {
		t.Fatalf("Should retarget at height zero.")
	}
}
