//go:build linux || darwin || freebsd || netbsd || openbsd

package arena_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/arena"
	"github.com/stretchr/testify/require"
)

func TestMappedGrow(t *testing.T) {
	mapped, err := arena.NewMapped(1 << 20)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, mapped.Close())
	}()

	require.Equal(t, -1, mapped.High())

	old, err := mapped.Grow(16)
	require.NoError(t, err)
	require.Equal(t, 0, old)
	require.Len(t, mapped.Bytes(), 16)

	mem := mapped.Bytes()
	mem[0] = 1
	mem[15] = 2

	old, err = mapped.Grow(3 * 4096)
	require.NoError(t, err)
	require.Equal(t, 16, old)
	require.Equal(t, 16+3*4096-1, mapped.High())

	mem = mapped.Bytes()
	mem[len(mem)-1] = 3
	require.Equal(t, byte(1), mem[0])
	require.Equal(t, byte(2), mem[15])
}

func TestMappedOutOfMemory(t *testing.T) {
	mapped, err := arena.NewMapped(4096)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, mapped.Close())
	}()

	_, err = mapped.Grow(len(mapped.Bytes()) + 1<<20)
	require.True(t, errors.Is(err, arena.ErrOutOfMemory))
}

func TestMappedClosed(t *testing.T) {
	mapped, err := arena.NewMapped(4096)
	require.NoError(t, err)
	require.NoError(t, mapped.Close())
	require.NoError(t, mapped.Close())

	_, err = mapped.Grow(8)
	require.Error(t, err)
}
