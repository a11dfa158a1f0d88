// Package compress holds the payload codecs used by the preview cache mirrors.
package compress

import "fmt"

type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

var (
	_ Compress = GZip{}
	_ Compress = Nop{}
	_ Compress = LZ4{}
	_ Compress = Brotli{}
)

// ByName returns the codec configured as name.
func ByName(name string) (Compress, error) {
	switch name {
	case "", "none", "nop":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "lz4":
		return NewLZ4(), nil
	case "brotli", "br":
		return NewBrotli(), nil
	}

	return nil, fmt.Errorf("unknown compression codec %q", name)
}
