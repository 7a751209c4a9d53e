package history

import (
	"fmt"
	"strconv"
)

// DecodeALUPort decodes an ALU SAP ifIndex-packed port identifier into
// slot/mda/port form. The reference decoder lived in an external helper
// module not available to this corpus; this reproduces the documented
// ALU ifIndex bit-packing convention (slot in bits 20-27, mda in bits
// 16-19, port in bits 0-15) and is not verified bit-exact against the
// original.
func DecodeALUPort(raw string) string {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	slot := (n >> 20) & 0xff
	mda := (n >> 16) & 0xf
	port := n & 0xffff
	return fmt.Sprintf("%d/%d/%d", slot, mda, port)
}
