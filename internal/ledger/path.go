package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HardenedOffset marks a hardened BIP-32 index.
const HardenedOffset = 0x80000000

// maxPathDepth is the deepest path the Ethereum app accepts.
const maxPathDepth = 10

// DefaultPath is the first account of the standard Ethereum derivation.
const DefaultPath = "m/44'/60'/0'/0/0"

var ErrInvalidPath = errors.New("invalid derivation path")

// DerivationPath is a BIP-32 path.
type DerivationPath []uint32

// ParsePath parses paths like m/44'/60'/0'/0/0. Hardened components may be
// written with ' or h. The leading m/ is optional.
func ParsePath(s string) (DerivationPath, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "m/")
	if s == "" || s == "m" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}

	parts := strings.Split(s, "/")
	if len(parts) > maxPathDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrInvalidPath, len(parts), maxPathDepth)
	}

	path := make(DerivationPath, 0, len(parts))
	for _, p := range parts {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h") || strings.HasSuffix(p, "H")
		if hardened {
			p = p[:len(p)-1]
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil || v >= HardenedOffset {
			return nil, fmt.Errorf("%w: component %q", ErrInvalidPath, p)
		}
		if hardened {
			v += HardenedOffset
		}
		path = append(path, uint32(v))
	}
	return path, nil
}

func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range p {
		b.WriteByte('/')
		if c >= HardenedOffset {
			b.WriteString(strconv.FormatUint(uint64(c-HardenedOffset), 10))
			b.WriteByte('\'')
		} else {
			b.WriteString(strconv.FormatUint(uint64(c), 10))
		}
	}
	return b.String()
}

// encode flattens the path: [count:1][index:4 big endian]...
func (p DerivationPath) encode() []byte {
	out := make([]byte, 1+4*len(p))
	out[0] = byte(len(p))
	for i, c := range p {
		binary.BigEndian.PutUint32(out[1+4*i:], c)
	}
	return out
}
