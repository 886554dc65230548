package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLamportsToSOL(t *testing.T) {
	cases := []struct {
		lamports uint64
		want     string
	}{
		{0, "0.000000000"},
		{1, "0.000000001"},
		{100, "0.000000100"},
		{24981836, "0.024981836"},
		{1_000_000_000, "1.000000000"},
		{1_500_000_000, "1.500000000"},
		{12_345_678_901, "12.345678901"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, LamportsToSOL(c.lamports))
	}
}

func TestFormatUSD(t *testing.T) {
	require.Equal(t, "22.99", FormatUSD(22.99))
	require.Equal(t, "20.00", FormatUSD(20))
	require.Equal(t, "2.99", FormatUSD(2.99))
}

func TestTruncateKey(t *testing.T) {
	require.Equal(t, "short", TruncateKey("short"))
	require.Equal(t, "GhosPr...9xQz", TruncateKey("GhosProtocolTestKey9xQz"))
}
