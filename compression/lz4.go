package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

func CompressLz4(src []byte, output *bytes.Buffer) error {
	zw := lz4.NewWriter(output)

	if _, writeErr := zw.Write(src); writeErr != nil {
		return writeErr
	}

	flushErr := zw.Flush()

	if flushErr != nil {
		return flushErr
	}

	return zw.Close()
}

func DecompressLz4(src []byte) ([]byte, error) {

	if len(src) == 0 {
		return nil, nil
	}

	zr := lz4.NewReader(bytes.NewReader(src))

	out, readErr := io.ReadAll(zr)
	if readErr != nil {
		return nil, fmt.Errorf("unable to decompress lz4 frame of %d bytes: %s", len(src), readErr.Error())
	}

	return out, nil
}
