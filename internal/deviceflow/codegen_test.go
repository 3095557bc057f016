package deviceflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wrale/oauth2-device-relay/internal/validation"
)

func TestAlphabet(t *testing.T) {
	require.Len(t, Alphabet, 47)

	for _, c := range validation.Confusable {
		require.NotContains(t, Alphabet, string(c))
	}
	for _, c := range "az9AYhk347" {
		require.Contains(t, Alphabet, string(c))
	}

	seen := make(map[rune]bool)
	for _, c := range Alphabet {
		require.False(t, seen[c], "duplicate %q", c)
		seen[c] = true
	}
}

func TestHumanCode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(t, "length")

		code, err := HumanCode(n)
		if err != nil {
			t.Fatalf("HumanCode(%d): %v", n, err)
		}
		if len(code) != n {
			t.Fatalf("len = %d, want %d", len(code), n)
		}
		for _, c := range code {
			if !strings.ContainsRune(Alphabet, c) {
				t.Fatalf("code %q has character %q outside the alphabet", code, c)
			}
		}
	})
}

func TestHumanCodeRejectsBadLength(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := HumanCode(n)
		require.Error(t, err)
	}
}

func TestHumanCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := HumanCode(DeviceCodeLength)
		require.NoError(t, err)
		require.False(t, seen[code], "repeated device code %q", code)
		seen[code] = true
	}
}
