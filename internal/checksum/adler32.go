// Package checksum provides the Adler-32 checksum primitive used over both
// the 128-byte Message header and the message body.
package checksum

import "hash/adler32"

// Sum computes the RFC 1950 Adler-32 checksum of data.
func Sum(data []byte) uint32 {
	return adler32.Checksum(data)
}
