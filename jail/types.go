package jail

import (
	"encoding/binary"
	"fmt"
	"net"

	blackerr "blackship/errors"
)

// ParamValue is a jail_set(2) parameter value, serialized to the wire
// format the kernel expects for each type.
type ParamValue struct {
	kind paramKind
	i    int32
	s    string
	b    bool
	ip4  []net.IP
	ip6  []net.IP
}

type paramKind int

const (
	paramInt paramKind = iota
	paramString
	paramBool
	paramIPv4
	paramIPv6
)

// IntParam wraps an int32 jail parameter (e.g. allow.raw_sockets).
func IntParam(v int32) ParamValue { return ParamValue{kind: paramInt, i: v} }

// StringParam wraps a string jail parameter (e.g. path, host.hostname).
func StringParam(v string) ParamValue { return ParamValue{kind: paramString, s: v} }

// BoolParam wraps a boolean jail parameter, stored on the wire as 0/1.
func BoolParam(v bool) ParamValue { return ParamValue{kind: paramBool, b: v} }

// IPv4Param wraps one or more IPv4 addresses (ip4.addr).
func IPv4Param(addrs ...net.IP) ParamValue { return ParamValue{kind: paramIPv4, ip4: addrs} }

// IPv6Param wraps one or more IPv6 addresses (ip6.addr).
func IPv6Param(addrs ...net.IP) ParamValue { return ParamValue{kind: paramIPv6, ip6: addrs} }

// Bytes serializes the parameter value to the byte layout jail_set(2)
// expects: int/bool as little-endian int32, string as a nul-terminated
// byte string, IPv4 as network-order 4-byte groups, IPv6 as 16-byte
// groups.
func (p ParamValue) Bytes() ([]byte, error) {
	switch p.kind {
	case paramInt:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(p.i))
		return buf, nil
	case paramBool:
		v := int32(0)
		if p.b {
			v = 1
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return buf, nil
	case paramString:
		return append([]byte(p.s), 0), nil
	case paramIPv4:
		buf := make([]byte, 0, len(p.ip4)*4)
		for _, a := range p.ip4 {
			v4 := a.To4()
			if v4 == nil {
				return nil, blackerr.New(blackerr.ErrConfigValidation, "param bytes", "not an IPv4 address")
			}
			buf = append(buf, v4...)
		}
		return buf, nil
	case paramIPv6:
		buf := make([]byte, 0, len(p.ip6)*16)
		for _, a := range p.ip6 {
			v6 := a.To16()
			if v6 == nil {
				return nil, blackerr.New(blackerr.ErrConfigValidation, "param bytes", "not an IPv6 address")
			}
			buf = append(buf, v6...)
		}
		return buf, nil
	default:
		return nil, blackerr.New(blackerr.ErrInternal, "param bytes", "unknown parameter kind")
	}
}

// ParamValueFromAny converts a raw decoded TOML value (as found in a
// jail's `params` table, decoded into map[string]any) into a
// ParamValue. Only integers, booleans, and strings are supported,
// matching the manifest's declared scalar parameter shape.
func ParamValueFromAny(raw any) (ParamValue, error) {
	switch val := raw.(type) {
	case int64:
		return IntParam(int32(val)), nil
	case int:
		return IntParam(int32(val)), nil
	case bool:
		return BoolParam(val), nil
	case string:
		return StringParam(val), nil
	default:
		return ParamValue{}, blackerr.New(blackerr.ErrConfigValidation, "param type", fmt.Sprintf("unsupported parameter type: %T", raw))
	}
}
