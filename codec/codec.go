package codec

import (
	"bytes"

	"github.com/dot5enko/simple-chunk-db/compression"
	"github.com/dot5enko/simple-chunk-db/config"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/schema"
)

// Codec converts one chunk file payload to rows and back.
type Codec interface {
	Encode(meta schema.Metadata, rows []schema.Row) ([]byte, error)
	Decode(meta schema.Metadata, data []byte) ([]schema.Row, error)
	Name() string
}

func ForConfig(cfg config.Config) (Codec, error) {

	var base Codec

	switch cfg.Kind {
	case config.KindSQL:
		base = CSV{}
	case config.KindNoSQL:
		base = JSON{}
	default:
		return nil, dberr.New(dberr.Unsupported, "no codec for database kind %q", cfg.Kind)
	}

	if cfg.Compression == config.CompressionLz4 {
		return Lz4{Inner: base}, nil
	}

	return base, nil
}

// Lz4 frames the payload of another codec
type Lz4 struct {
	Inner Codec
}

func (c Lz4) Name() string { return c.Inner.Name() + "+lz4" }

func (c Lz4) Encode(meta schema.Metadata, rows []schema.Row) ([]byte, error) {
	plain, err := c.Inner.Encode(meta, rows)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if compressErr := compression.CompressLz4(plain, &buf); compressErr != nil {
		return nil, dberr.Wrap(dberr.Internal, compressErr, "unable to compress chunk")
	}

	return buf.Bytes(), nil
}

func (c Lz4) Decode(meta schema.Metadata, data []byte) ([]schema.Row, error) {
	plain, err := compression.DecompressLz4(data)
	if err != nil {
		return nil, dberr.Wrap(dberr.Inconsistent, err, "corrupted chunk payload")
	}

	return c.Inner.Decode(meta, plain)
}
