package dvbs2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileTableIsTotal(t *testing.T) {
	seen := map[Profile]ModCod{}

	for _, m := range ModCods() {
		p, ok := ProfileFor(m)
		if !assert.True(t, ok, "no profile for %s", m) {
			continue
		}

		// Every selector maps to exactly one distinct profile
		other, dup := seen[p]
		assert.False(t, dup, "%s and %s share profile %s", m, other, p)
		seen[p] = m

		assert.True(t, Supports(p.Constellation, p.CodeRate), "profile %s is not a DVB-S2 combination", p)
	}

	assert.Len(t, profiles, len(ModCods()))
}

func TestProfileValues(t *testing.T) {
	tests := []struct {
		modcod ModCod
		want   Profile
	}{
		{QPSK1_2, Profile{ConstellationQPSK, C1_2}},
		{QPSK3_4, Profile{ConstellationQPSK, C3_4}},
		{PSK8_2_3, Profile{Constellation8PSK, C2_3}},
		{PSK8_5_6, Profile{Constellation8PSK, C5_6}},
	}

	for _, tt := range tests {
		t.Run(string(tt.modcod), func(t *testing.T) {
			got, ok := ProfileFor(tt.modcod)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ProfileFor("16APSK2/3")
	assert.False(t, ok)
}

func TestParseRollOff(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		want RollOff
		ok   bool
	}{
		{0.2, RollOff020, true},
		{0.20, RollOff020, true},
		{0.25, RollOff025, true},
		{0.35, RollOff035, true},
		{0.3, "", false},
		{0, "", false},
	} {
		got, ok := ParseRollOff(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports(ConstellationQPSK, C1_2))
	assert.False(t, Supports(Constellation8PSK, C1_2))
	assert.True(t, Supports(Constellation8PSK, C3_5))
	assert.False(t, Supports(ConstellationQPSK, "C9_10_BOGUS"))
	assert.False(t, Supports("MOD_64APSK", C2_3))
}

func TestPilotsString(t *testing.T) {
	assert.Equal(t, "PILOTS_ON", PilotsOn.String())
	assert.Equal(t, "PILOTS_OFF", PilotsOff.String())
	assert.Equal(t, 3, Constellation8PSK.BitsPerSymbol())
}
