//go:build unix

package runtime

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/tcc-runtime/errors"
)

func TestAllocExecMemory(t *testing.T) {
	mem, err := AllocExecMemory(100)
	require.NoError(t, err)
	require.Equal(t, os.Getpagesize(), mem.Len())
	require.NotNil(t, mem.Ptr())

	mem.Bytes()[0] = 0xc3
	require.NoError(t, mem.Free())
	require.NoError(t, mem.Free())
	require.Nil(t, mem.Ptr())
	require.Zero(t, mem.Len())
}

func TestAllocExecMemory_InvalidSize(t *testing.T) {
	_, err := AllocExecMemory(0)
	requireKind(t, err, errors.KindInvalidInput)
}
