package regexcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileCaches(t *testing.T) {
	c := New(4)
	re1, err := c.Compile(`^a+$`)
	require.NoError(t, err)
	re2, err := c.Compile(`^a+$`)
	require.NoError(t, err)
	require.Same(t, re1, re2)
}

func TestCompileFailureDoesNotPoison(t *testing.T) {
	c := New(4)
	_, err := c.Compile(`(`)
	require.Error(t, err)
	// A later, valid, identical-looking retry after fixing the pattern
	// must succeed rather than replaying a cached failure.
	re, err := c.Compile(`(a)`)
	require.NoError(t, err)
	require.NotNil(t, re)
}
