// Package property implements the 12-byte property element TLV codec carried
// in ACP message bodies, together with the static property catalogue.
package property

import (
	"encoding/binary"
	"fmt"

	"github.com/nlowe/acpctl/internal/acperrors"
)

// elementHeaderSize is the fixed name+flags+size prefix of every property
// element; size bytes of value follow.
const elementHeaderSize = 12

// sentinelName is the four-NUL property name marking the end of a list.
const sentinelName = "\x00\x00\x00\x00"

// Property is one typed attribute of the device as carried on the wire.
type Property struct {
	Name  string
	Flags uint32
	Value []byte
}

// Sentinel returns the canonical end-of-list element: a four-NUL name with a
// four-NUL value. Callers composing a property list should always emit this
// form (see DESIGN.md Open Question 2); readers accept either this or a
// zero-length sentinel body.
func Sentinel() Property {
	return Property{Name: sentinelName, Value: []byte{0, 0, 0, 0}}
}

// IsSentinel reports whether p is the end-of-list marker, regardless of
// whether its value carries the full four NUL bytes or is empty.
func (p Property) IsSentinel() bool {
	return p.Name == sentinelName
}

// IsError reports whether flags bit 0 is set, meaning Value is a 4-byte
// big-endian error code rather than the property's normal value.
func (p Property) IsError() bool {
	return p.Flags&1 != 0
}

// ErrorCode returns the big-endian error code carried in Value when IsError
// is true.
func (p Property) ErrorCode() (int32, bool) {
	if !p.IsError() || len(p.Value) != 4 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(p.Value)), true
}

// New constructs a Property for tag name from a host-typed value, coercing it
// to the canonical wire bytes for the catalogue entry's logical type. The tag
// must be present in the static catalogue; if the entry declares a validator,
// the coerced value must satisfy it.
func New(name string, value any) (Property, error) {
	if len(name) != 4 {
		return Property{}, &acperrors.ValidationError{Tag: name, Reason: "property name must be exactly 4 bytes"}
	}

	entry, ok := Lookup(name)
	if !ok {
		return Property{}, &acperrors.ValidationError{Tag: name, Reason: "unknown property tag"}
	}

	raw, err := coerce(name, entry.Type, value)
	if err != nil {
		return Property{}, err
	}

	if entry.Validator != nil && !entry.Validator(raw) {
		return Property{}, &acperrors.ValidationError{Tag: name, Reason: "value rejected by catalogue validator"}
	}

	return Property{Name: name, Value: raw}, nil
}

// NewQuery constructs an empty-valued property element suitable for use in a
// GetProp request body: just the tag, no value.
func NewQuery(name string) (Property, error) {
	if _, ok := Lookup(name); !ok {
		return Property{}, &acperrors.ValidationError{Tag: name, Reason: "unknown property tag"}
	}
	return Property{Name: name}, nil
}

// NewErrorProperty constructs a property element carrying a per-property
// error code, as a server reply would for a rejected SetProp element.
func NewErrorProperty(name string, code int32) Property {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(code))
	return Property{Name: name, Flags: 1, Value: b}
}

// Compose serialises p to its 12-byte-header wire form.
func (p Property) Compose() ([]byte, error) {
	if len(p.Name) != 4 {
		return nil, &acperrors.FramingError{Field: "name", Reason: "property name must be exactly 4 bytes"}
	}

	out := make([]byte, elementHeaderSize+len(p.Value))
	copy(out[0:4], p.Name)
	binary.BigEndian.PutUint32(out[4:8], p.Flags)
	binary.BigEndian.PutUint32(out[8:12], uint32(len(p.Value)))
	copy(out[elementHeaderSize:], p.Value)
	return out, nil
}

// ParseElementHeader decodes the fixed 12-byte prefix of a property element
// without consuming its value bytes.
func ParseElementHeader(data []byte) (name string, flags uint32, size uint32, err error) {
	if len(data) < elementHeaderSize {
		return "", 0, 0, &acperrors.FramingError{Field: "property_header", Reason: fmt.Sprintf("need %d bytes, have %d", elementHeaderSize, len(data))}
	}
	name = string(data[0:4])
	flags = binary.BigEndian.Uint32(data[4:8])
	size = binary.BigEndian.Uint32(data[8:12])
	return name, flags, size, nil
}

// Parse decodes one property element from the head of data, returning the
// element and any unconsumed bytes.
func Parse(data []byte) (Property, []byte, error) {
	name, flags, size, err := ParseElementHeader(data)
	if err != nil {
		return Property{}, nil, err
	}

	rest := data[elementHeaderSize:]
	if uint32(len(rest)) < size {
		return Property{}, nil, &acperrors.FramingError{Field: "property_value", Reason: fmt.Sprintf("need %d value bytes, have %d", size, len(rest))}
	}

	value := append([]byte(nil), rest[:size]...)
	return Property{Name: name, Flags: flags, Value: value}, rest[size:], nil
}

// ComposeRequestList serialises props with no trailing sentinel, for use as a
// GetProp/SetProp request body: the sentinel terminates reply lists, not
// request lists (see DESIGN.md).
func ComposeRequestList(props []Property) ([]byte, error) {
	var out []byte
	for _, p := range props {
		b, err := p.Compose()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// ComposeList serialises props followed by the end-of-list sentinel, for use
// composing a reply body (and in tests that exercise the reply path).
func ComposeList(props []Property) ([]byte, error) {
	out, err := ComposeRequestList(props)
	if err != nil {
		return nil, err
	}

	sentinel, err := Sentinel().Compose()
	if err != nil {
		return nil, err
	}
	return append(out, sentinel...), nil
}

// ParseList decodes a sequence of property elements from data, stopping at
// the first sentinel or per-property error. On a per-property error, the
// properties decoded so far are returned alongside a *acperrors.PropertyError.
func ParseList(data []byte) ([]Property, error) {
	var props []Property

	for len(data) > 0 {
		p, rest, err := Parse(data)
		if err != nil {
			return props, err
		}
		data = rest

		if p.IsSentinel() {
			return props, nil
		}

		if p.IsError() {
			code, _ := p.ErrorCode()
			return props, &acperrors.PropertyError{Tag: p.Name, Code: code}
		}

		props = append(props, p)
	}

	return props, &acperrors.FramingError{Field: "property_list", Reason: "list truncated before sentinel"}
}
