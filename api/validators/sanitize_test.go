package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeStringTrimsAndCaps(t *testing.T) {
	require.Equal(t, "arrived broken", SanitizeString("  arrived broken \n", 500))
	require.Equal(t, "", SanitizeString("   ", 500))

	long := strings.Repeat("a", 600)
	require.Len(t, SanitizeString(long, 500), 500)

	// No cap when maxLen is zero.
	require.Len(t, SanitizeString(long, 0), 600)
}

func TestSanitizeStringKeepsMultibyteRunesWhole(t *testing.T) {
	got := SanitizeString("céramique fêlée", 10)
	require.Equal(t, "céramique", got)
	require.True(t, strings.HasPrefix("céramique fêlée", got))
}

func TestSanitizeStringDropsNULBytes(t *testing.T) {
	require.Equal(t, "broken lid", SanitizeString("broken\x00 lid", 100))
}
