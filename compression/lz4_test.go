package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLz4RoundTrip(t *testing.T) {
	src := []byte(strings.Repeat("1,a,true\n", 500))

	var buf bytes.Buffer
	require.NoError(t, CompressLz4(src, &buf))
	assert.Less(t, buf.Len(), len(src))

	out, err := DecompressLz4(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestDecompressGarbage(t *testing.T) {
	_, err := DecompressLz4([]byte("definitely not lz4"))
	assert.Error(t, err)

	out, err := DecompressLz4(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
