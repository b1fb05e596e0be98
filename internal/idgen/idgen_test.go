package idgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNew(t *testing.T) {
	for kind, shape := range map[Kind]*regexp.Regexp{
		Profile: regexp.MustCompile(`^pf-[a-zA-Z0-9]{10}$`),
		Event:   regexp.MustCompile(`^ev-[a-zA-Z0-9]{10}$`),
		"x-":    regexp.MustCompile(`^x-[a-zA-Z0-9]{10}$`),
	} {
		for range 100 {
			id, err := kind.New()
			require.NoError(t, err)
			assert.Regexp(t, shape, id)
		}
	}
}

func TestKindNew_Unique(t *testing.T) {
	const n = 10_000
	seen := make(map[string]bool, n)
	for i := range n {
		id, err := Event.New()
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate %q after %d ids", id, i)
		seen[id] = true
	}
}
