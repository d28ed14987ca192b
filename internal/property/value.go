package property

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nlowe/acpctl/internal/acperrors"
	"github.com/nlowe/acpctl/internal/cflplist"
)

func decodeU32(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// coerce converts a host-typed value to the canonical wire bytes for the
// catalogue entry's logical type tag.
func coerce(tag string, typ string, value any) ([]byte, error) {
	switch typ {
	case "str", "dec", "hex", "log":
		s, ok := value.(string)
		if !ok {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("want string, got %T", value)}
		}
		return []byte(s), nil

	case "mac":
		switch v := value.(type) {
		case []byte:
			if len(v) != 6 {
				return nil, &acperrors.ValidationError{Tag: tag, Reason: "mac value must be 6 bytes"}
			}
			return append([]byte(nil), v...), nil
		case string:
			hw, err := net.ParseMAC(v)
			if err != nil || len(hw) != 6 {
				return nil, &acperrors.ValidationError{Tag: tag, Reason: "invalid MAC address text"}
			}
			return []byte(hw), nil
		default:
			return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("want []byte or string, got %T", value)}
		}

	case "cfb":
		v, ok := value.(cflplist.Value)
		if !ok {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("want cflplist.Value, got %T", value)}
		}
		return cflplist.ComposeBlob(v)

	case "bin", "bpl":
		b, ok := value.([]byte)
		if !ok {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("want []byte, got %T", value)}
		}
		return append([]byte(nil), b...), nil

	case "u8", "ui8":
		n, err := asInt(value)
		if err != nil || n < 0 || n > 0xff {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: "value out of range for 8-bit field"}
		}
		return []byte{byte(n)}, nil

	case "u16":
		n, err := asInt(value)
		if err != nil || n < 0 || n > 0xffff {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: "value out of range for 16-bit field"}
		}
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		return b, nil

	case "u32":
		n, err := asInt(value)
		if err != nil || n < 0 || n > 0xffffffff {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: "value out of range for 32-bit field"}
		}
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		return b, nil

	case "ip4":
		ip, err := asIP(value)
		if err != nil {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: err.Error()}
		}
		v4 := ip.To4()
		if v4 == nil {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: "not an IPv4 address"}
		}
		return []byte(v4), nil

	case "ip6":
		ip, err := asIP(value)
		if err != nil {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: err.Error()}
		}
		v6 := ip.To16()
		if v6 == nil {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: "not an IPv6 address"}
		}
		return []byte(v6), nil

	case "uid":
		switch v := value.(type) {
		case []byte:
			if len(v) != 16 {
				return nil, &acperrors.ValidationError{Tag: tag, Reason: "uid value must be 16 bytes"}
			}
			return append([]byte(nil), v...), nil
		case string:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, &acperrors.ValidationError{Tag: tag, Reason: "invalid UUID text"}
			}
			b := id
			return b[:], nil
		default:
			return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("want []byte or string, got %T", value)}
		}

	case "boo":
		b, ok := value.(bool)
		if !ok {
			return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("want bool, got %T", value)}
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	default:
		return nil, &acperrors.ValidationError{Tag: tag, Reason: fmt.Sprintf("unhandled catalogue type %q", typ)}
	}
}

func asInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("want an integer, got %T", value)
	}
}

func asIP(value any) (net.IP, error) {
	switch v := value.(type) {
	case net.IP:
		return v, nil
	case []byte:
		return net.IP(v), nil
	case string:
		ip := net.ParseIP(v)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address text %q", v)
		}
		return ip, nil
	default:
		return nil, fmt.Errorf("want net.IP, []byte, or string, got %T", value)
	}
}

// AsString formats the property's value for display according to its
// catalogue type, falling back to a hex dump for unknown tags.
func (p Property) AsString() string {
	entry, ok := Lookup(p.Name)
	if !ok {
		return fmt.Sprintf("% x", p.Value)
	}

	switch entry.Type {
	case "str", "dec", "hex", "log":
		return string(p.Value)
	case "mac":
		if len(p.Value) == 6 {
			return net.HardwareAddr(p.Value).String()
		}
		return fmt.Sprintf("% x", p.Value)
	case "ip4", "ip6":
		return net.IP(p.Value).String()
	case "uid":
		id, err := uuid.FromBytes(p.Value)
		if err != nil {
			return fmt.Sprintf("% x", p.Value)
		}
		return id.String()
	case "u8", "ui8", "u16", "u32":
		return strconv.FormatUint(uint64(decodeUint(p.Value)), 10)
	case "boo":
		return strconv.FormatBool(len(p.Value) == 1 && p.Value[0] != 0)
	case "cfb":
		v, err := cflplist.ParseBlob(p.Value)
		if err != nil {
			return fmt.Sprintf("<invalid cfb: %v>", err)
		}
		return fmt.Sprintf("%+v", v)
	default:
		return fmt.Sprintf("% x", p.Value)
	}
}

func decodeUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// MACString formats a property holding a MAC address as "aa:bb:cc:dd:ee:ff".
func (p Property) MACString() string {
	return strings.ToLower(net.HardwareAddr(p.Value).String())
}
