package fixture

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Codec reads and writes fixtures in one file format
type Codec interface {
	Decode(r io.Reader) (*Fixture, error)
	Encode(f *Fixture, w io.Writer) error
	Format() string
}

// CodecFor picks a codec from a file extension
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec(), nil
	case ".json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("no fixture codec for %q", path)
	}
}
