// Package message implements the ACP 128-byte framed message codec.
package message

import (
	"encoding/binary"
	"fmt"

	"github.com/nlowe/acpctl/internal/acperrors"
	"github.com/nlowe/acpctl/internal/checksum"
	"github.com/nlowe/acpctl/internal/keystream"
)

// HeaderSize is the fixed size in bytes of a Message header.
const HeaderSize = 128

var magic = [4]byte{'a', 'c', 'p', 'p'}

// Supported protocol versions. VersionCurrent is always written; VersionLegacy
// is tolerated on read for compatibility with older peers.
const (
	VersionLegacy  int32 = 0x00000001
	VersionCurrent int32 = 0x00030001
)

// Command identifies the operation a Message carries.
type Command int32

// Command constants.
const (
	CommandEcho            Command = 0x01
	CommandFlashPrimary    Command = 0x03
	CommandFlashSecondary  Command = 0x05
	CommandFlashBootloader Command = 0x06
	CommandGetProp         Command = 0x14
	CommandSetProp         Command = 0x15
	CommandPerform         Command = 0x16
	CommandMonitor         Command = 0x18
	CommandRPC             Command = 0x19
	CommandAuth            Command = 0x1a
	CommandFeat            Command = 0x1b
)

func (c Command) valid() bool {
	switch c {
	case CommandEcho, CommandFlashPrimary, CommandFlashSecondary, CommandFlashBootloader,
		CommandGetProp, CommandSetProp, CommandPerform, CommandMonitor, CommandRPC,
		CommandAuth, CommandFeat:
		return true
	default:
		return false
	}
}

// StreamBodySize is the sentinel body_size value denoting an open-ended
// stream frame (no fixed-length body attached).
const StreamBodySize int32 = -1

// Message is one ACP request or response frame.
type Message struct {
	Version   int32
	Flags     int32
	Command   Command
	ErrorCode int32
	Key       [32]byte
	BodySize  int32
	Body      []byte
}

// HeaderKey derives the obfuscated 32-byte key field for password. The Feat
// command always uses the empty-password derivation regardless of any stored
// session password.
func HeaderKey(password string) [32]byte {
	var key [32]byte

	padded := make([]byte, 32)
	copy(padded, password)
	if len(password) > 32 {
		copy(padded, password[:32])
	}

	masked := keystream.XOR(padded)
	copy(key[:], masked)
	return key
}

// New builds a Message with no body, deriving the key field from password.
func New(command Command, flags int32, password string) *Message {
	key := password
	if command == CommandFeat {
		key = ""
	}

	return &Message{
		Version:  VersionCurrent,
		Flags:    flags,
		Command:  command,
		Key:      HeaderKey(key),
		BodySize: 0,
	}
}

// WithBody attaches a body to the message, setting BodySize and the body
// checksum accordingly.
func (m *Message) WithBody(body []byte) *Message {
	m.Body = body
	m.BodySize = int32(len(body))
	return m
}

func (m *Message) bodyChecksum() uint32 {
	if len(m.Body) == 0 {
		return 1
	}
	return checksum.Sum(m.Body)
}

// Pack serialises the header (and any attached body) to wire bytes. The
// header checksum is computed with the checksum field zeroed, then written
// back before the final serialisation is returned.
func (m *Message) Pack() ([]byte, error) {
	if !m.Command.valid() {
		return nil, &acperrors.FramingError{Field: "command", Reason: fmt.Sprintf("unknown command 0x%02x", int32(m.Command))}
	}
	if m.BodySize == StreamBodySize && len(m.Body) != 0 {
		return nil, &acperrors.FramingError{Field: "body_size", Reason: "stream header must not carry an attached body"}
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], magic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(m.Version))
	// header[8:12] header_checksum, filled below
	binary.BigEndian.PutUint32(header[12:16], m.bodyChecksum())
	binary.BigEndian.PutUint32(header[16:20], uint32(m.BodySize))
	binary.BigEndian.PutUint32(header[20:24], uint32(m.Flags))
	binary.BigEndian.PutUint32(header[24:28], 0)
	binary.BigEndian.PutUint32(header[28:32], uint32(m.Command))
	binary.BigEndian.PutUint32(header[32:36], uint32(m.ErrorCode))
	copy(header[48:80], m.Key[:])

	sum := checksum.Sum(header)
	binary.BigEndian.PutUint32(header[8:12], sum)

	if len(m.Body) == 0 {
		return header, nil
	}

	out := make([]byte, HeaderSize+len(m.Body))
	copy(out, header)
	copy(out[HeaderSize:], m.Body)
	return out, nil
}

// ParseOptions controls optional leniency during Parse.
type ParseOptions struct {
	// ReturnRemaining, when true, causes Parse to also return any bytes in
	// data beyond the parsed message rather than treating them as an error.
	ReturnRemaining bool
}

// PeekBodySize extracts the body_size field from a 128-byte header without
// validating the header checksum or command. Callers streaming a message off
// a socket use this to learn how many more bytes to read before handing the
// full frame to Parse.
func PeekBodySize(header []byte) (int32, error) {
	if len(header) < HeaderSize {
		return 0, &acperrors.FramingError{Field: "header", Reason: fmt.Sprintf("need %d bytes, have %d", HeaderSize, len(header))}
	}
	return int32(binary.BigEndian.Uint32(header[16:20])), nil
}

// ParseHeader validates and decodes just the 128-byte header, leaving Body
// nil. Used by callers that read a message's body separately once they know
// its size from BodySize.
func ParseHeader(header []byte) (*Message, uint32, error) {
	if len(header) < HeaderSize {
		return nil, 0, &acperrors.FramingError{Field: "header", Reason: fmt.Sprintf("need %d bytes, have %d", HeaderSize, len(header))}
	}
	header = header[:HeaderSize]

	if string(header[0:4]) != string(magic[:]) {
		return nil, 0, &acperrors.FramingError{Field: "magic", Reason: "bad magic"}
	}

	version := int32(binary.BigEndian.Uint32(header[4:8]))
	if version != VersionLegacy && version != VersionCurrent {
		return nil, 0, &acperrors.FramingError{Field: "version", Reason: fmt.Sprintf("unknown version 0x%08x", uint32(version))}
	}

	wantChecksum := binary.BigEndian.Uint32(header[8:12])
	verifyHeader := make([]byte, HeaderSize)
	copy(verifyHeader, header)
	binary.BigEndian.PutUint32(verifyHeader[8:12], 0)
	if gotChecksum := checksum.Sum(verifyHeader); gotChecksum != wantChecksum {
		return nil, 0, &acperrors.FramingError{Field: "header_checksum", Reason: "header checksum mismatch"}
	}

	bodyChecksum := binary.BigEndian.Uint32(header[12:16])
	bodySize := int32(binary.BigEndian.Uint32(header[16:20]))
	flags := int32(binary.BigEndian.Uint32(header[20:24]))
	command := Command(int32(binary.BigEndian.Uint32(header[28:32])))
	if !command.valid() {
		return nil, 0, &acperrors.FramingError{Field: "command", Reason: fmt.Sprintf("unknown command 0x%02x", int32(command))}
	}
	errorCode := int32(binary.BigEndian.Uint32(header[32:36]))

	m := &Message{
		Version:   version,
		Flags:     flags,
		Command:   command,
		ErrorCode: errorCode,
		BodySize:  bodySize,
	}
	copy(m.Key[:], header[48:80])

	return m, bodyChecksum, nil
}

// Parse decodes a Message from data. data must contain at least the 128-byte
// header; if body_size is non-negative, data must also contain that many
// body bytes immediately following the header.
func Parse(data []byte, opts ParseOptions) (*Message, []byte, error) {
	if len(data) < HeaderSize {
		return nil, nil, &acperrors.FramingError{Field: "header", Reason: fmt.Sprintf("need %d bytes, have %d", HeaderSize, len(data))}
	}

	m, bodyChecksum, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		return nil, nil, err
	}
	bodySize := m.BodySize

	rest := data[HeaderSize:]

	if bodySize == StreamBodySize {
		if opts.ReturnRemaining {
			return m, rest, nil
		}
		if len(rest) != 0 {
			return nil, nil, &acperrors.FramingError{Field: "body_size", Reason: "stream header must not carry an attached body"}
		}
		return m, nil, nil
	}

	if int32(len(rest)) < bodySize {
		return nil, nil, &acperrors.FramingError{Field: "body_size", Reason: fmt.Sprintf("need %d body bytes, have %d", bodySize, len(rest))}
	}

	body := rest[:bodySize]
	if bodySize == 0 {
		if bodyChecksum != 1 {
			return nil, nil, &acperrors.FramingError{Field: "body_checksum", Reason: "empty body must carry checksum 1"}
		}
	} else if checksum.Sum(body) != bodyChecksum {
		return nil, nil, &acperrors.FramingError{Field: "body_checksum", Reason: "body checksum mismatch"}
	}
	m.Body = append([]byte(nil), body...)

	if opts.ReturnRemaining {
		return m, rest[bodySize:], nil
	}
	if extra := len(rest) - int(bodySize); extra != 0 {
		return nil, nil, &acperrors.FramingError{Field: "body_size", Reason: fmt.Sprintf("%d unexpected bytes after body", extra)}
	}
	return m, nil, nil
}
