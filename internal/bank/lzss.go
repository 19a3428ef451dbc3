package bank

import (
	"context"
	"encoding/binary"
	"fmt"
)

// cancelCheckInterval is how many flag bytes are processed between context
// checks.
const cancelCheckInterval = 1 << 12

// maxExpansion bounds the output of one input byte: a flag byte followed by
// eight 2-byte references yields at most 8*18 bytes from 17 input bytes.
const maxExpansion = 9

// Decompress inflates an LZSS stream as stored in compressed bank entries.
// size is the expected output length. A trailing 4-byte additive checksum is
// verified when present.
func Decompress(ctx context.Context, src []byte, size int) ([]byte, error) {
	if size < 0 || size > maxExpansion*len(src) {
		return nil, fmt.Errorf("declared size %d cannot come from %d packed bytes", size, len(src))
	}
	out := make([]byte, 0, size)
	i := 0
	blocks := 0
	for len(out) < size {
		if blocks%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		blocks++

		if i >= len(src) {
			return nil, fmt.Errorf("stream ended after %d of %d bytes", len(out), size)
		}
		flags := src[i]
		i++
		for bit := 0; bit < 8 && len(out) < size; bit++ {
			if flags&(1<<bit) != 0 {
				if i >= len(src) {
					return nil, fmt.Errorf("stream ended inside literal at %d", i)
				}
				out = append(out, src[i])
				i++
				continue
			}

			if i+1 >= len(src) {
				return nil, fmt.Errorf("stream ended inside back-reference at %d", i)
			}
			distance := int(src[i]) | int(src[i+1]&0xF0)<<4
			length := int(src[i+1]&0x0F) + 3
			i += 2
			if distance == 0 {
				return nil, fmt.Errorf("invalid back-reference distance 0 at %d", i-2)
			}

			start := len(out) - distance
			for k := 0; k < length && len(out) < size; k++ {
				if p := start + k; p < 0 {
					out = append(out, ' ')
				} else {
					out = append(out, out[p])
				}
			}
		}
	}

	if len(src)-i >= 4 {
		var sum uint32
		for _, c := range out {
			sum += uint32(c)
		}
		if want := binary.LittleEndian.Uint32(src[i:]); want != sum {
			return nil, fmt.Errorf("checksum mismatch: stored %#x, computed %#x", want, sum)
		}
	}
	return out, nil
}
