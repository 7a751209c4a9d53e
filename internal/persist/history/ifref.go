package history

import (
	"fmt"
	"strconv"
	"strings"
)

// integerOIDs lists the interface-table OIDs that must be coerced to
// integer before history comparison, per spec.md §4.5's attribute
// handling rules.
var integerOIDs = map[string]bool{
	"ifIndex":       true,
	"ifType":        true,
	"ifMtu":         true,
	"ifSpeed":       true,
	"ifAdminStatus": true,
	"ifOperStatus":  true,
	"ifHighSpeed":   true,
}

// IfRefBuilder builds the plain interface-reference snapshot: entities
// keyed by ifDescr, ifPhysAddress hex-encoded, ipAddr cross-referenced
// from the ipAdEntIfIndex/ipAdEntAddr OID tables.
type IfRefBuilder struct{}

// NewIfRefBuilder returns the plain interface reconciler's row builder.
func NewIfRefBuilder() *IfRefBuilder { return &IfRefBuilder{} }

func (b *IfRefBuilder) KeyAttr() string { return "ifDescr" }

func (b *IfRefBuilder) Build(raw map[string]map[string]any) (map[string]map[string]any, error) {
	ifDescr, ok := raw["ifDescr"]
	if !ok {
		return map[string]map[string]any{}, nil
	}

	ipByIfIndex := crossReferenceIPAddr(raw)

	objs := make(map[string]map[string]any, len(ifDescr))
	for index, descVal := range ifDescr {
		desc := fmt.Sprint(descVal)
		attrs := map[string]any{"ifDescr": desc}

		for oidName, table := range raw {
			if oidName == "ifDescr" || oidName == "ipAdEntIfIndex" || oidName == "ipAdEntAddr" {
				continue
			}
			val, ok := table[index]
			if !ok {
				continue
			}
			switch {
			case oidName == "ifPhysAddress":
				attrs[oidName] = hexEncodePhysAddr(val)
			case integerOIDs[oidName]:
				attrs[oidName] = coerceInt(val)
			default:
				attrs[oidName] = val
			}
		}

		if ifIndex, ok := attrs["ifIndex"].(int64); ok {
			if ip, found := ipByIfIndex[ifIndex]; found {
				attrs["ipAddr"] = ip
			}
		}

		objs[desc] = attrs
	}
	return objs, nil
}

// crossReferenceIPAddr joins the ipAdEntIfIndex and ipAdEntAddr OID
// tables on their shared dotted-index key to build ifIndex -> address.
func crossReferenceIPAddr(raw map[string]map[string]any) map[int64]string {
	ifIndexByKey := raw["ipAdEntIfIndex"]
	addrByKey := raw["ipAdEntAddr"]

	result := map[int64]string{}
	for key, ifIndexVal := range ifIndexByKey {
		addr, ok := addrByKey[key]
		if !ok {
			continue
		}
		result[coerceInt(ifIndexVal)] = fmt.Sprint(addr)
	}
	return result
}

// hexEncodePhysAddr converts an opaque MAC-address byte string into
// colon-separated lower-case hex, or nil for an empty string.
func hexEncodePhysAddr(val any) any {
	var b []byte
	switch t := val.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return nil
	}
	if len(b) == 0 {
		return nil
	}
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, ":")
}

func coerceInt(val any) int64 {
	switch t := val.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	default:
		return 0
	}
}

// ALUIfRefBuilder normalizes the ALU-vendor comma-separated ifDescr
// ("name,?,alias") into a plain ifDescr plus a synthesized ifAlias before
// delegating to IfRefBuilder.
type ALUIfRefBuilder struct {
	*IfRefBuilder
}

// NewALUIfRefBuilder returns the ALU interface reconciler's row builder.
func NewALUIfRefBuilder() *ALUIfRefBuilder {
	return &ALUIfRefBuilder{IfRefBuilder: NewIfRefBuilder()}
}

func (b *ALUIfRefBuilder) Build(raw map[string]map[string]any) (map[string]map[string]any, error) {
	normalized := cloneRaw(raw)

	ifDescrRaw, ok := raw["ifDescr"]
	if !ok {
		return b.IfRefBuilder.Build(normalized)
	}

	fixedDescr := map[string]any{}
	alias := map[string]any{}
	for index, val := range ifDescrRaw {
		fields := strings.Split(fmt.Sprint(val), ",")
		fixedDescr[index] = strings.TrimSpace(fields[0])
		if len(fields) >= 3 {
			alias[index] = strings.Trim(strings.TrimSpace(fields[2]), `"`)
		}
	}
	normalized["ifDescr"] = fixedDescr
	if len(alias) > 0 {
		normalized["ifAlias"] = alias
	}

	return b.IfRefBuilder.Build(normalized)
}

// InfineraIfRefBuilder remaps gigeClientCtpPmRealCktId to ifAlias, keeps
// only the ifDescr entries prefixed GIGECLIENTCTP (using the text after
// the first '=' as the ifDescr),
// and synthesizes zero-valued ifSpeed/ifHighSpeed plus an empty
// ipAdEntIfIndex table, then delegates to IfRefBuilder.
type InfineraIfRefBuilder struct {
	*IfRefBuilder
}

// NewInfineraIfRefBuilder returns the Infinera interface reconciler's row
// builder.
func NewInfineraIfRefBuilder() *InfineraIfRefBuilder {
	return &InfineraIfRefBuilder{IfRefBuilder: NewIfRefBuilder()}
}

func (b *InfineraIfRefBuilder) Build(raw map[string]map[string]any) (map[string]map[string]any, error) {
	normalized := cloneRaw(raw)

	if cktID, ok := raw["gigeClientCtpPmRealCktId"]; ok {
		normalized["ifAlias"] = cktID
		delete(normalized, "gigeClientCtpPmRealCktId")
	}

	ifDescrRaw, ok := raw["ifDescr"]
	if !ok {
		return b.IfRefBuilder.Build(normalized)
	}

	const prefix = "GIGECLIENTCTP"
	filtered := map[string]any{}
	zero := map[string]any{}
	for index, val := range ifDescrRaw {
		s := fmt.Sprint(val)
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		_, ifdescr, _ := strings.Cut(s, "=")
		filtered[index] = ifdescr
		zero[index] = int64(0)
	}
	normalized["ifDescr"] = filtered
	normalized["ifSpeed"] = zero
	normalized["ifHighSpeed"] = zero
	normalized["ipAdEntIfIndex"] = map[string]any{}

	return b.IfRefBuilder.Build(normalized)
}

func cloneRaw(raw map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
