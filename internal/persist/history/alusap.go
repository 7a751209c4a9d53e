package history

import (
	"fmt"
	"strings"
)

// aluSAPIntOIDs lists the ALU SAP OIDs that must be coerced to integer
// before history comparison, per spec.md §4.5's attribute handling rules.
var aluSAPIntOIDs = map[string]bool{
	"sapIngressQosPolicyId": true,
	"sapEgressQosPolicyId":  true,
}

// ALUSAPBuilder builds the ALU service-access-point snapshot. Entities
// have no standalone name OID; the name is synthesized from the
// vpls/port/vlan fields packed into each table's dotted index.
type ALUSAPBuilder struct{}

// NewALUSAPBuilder returns the ALU SAP reconciler's row builder.
func NewALUSAPBuilder() *ALUSAPBuilder { return &ALUSAPBuilder{} }

func (b *ALUSAPBuilder) KeyAttr() string { return "name" }

func (b *ALUSAPBuilder) Build(raw map[string]map[string]any) (map[string]map[string]any, error) {
	indices := map[string]bool{}
	for _, table := range raw {
		for index := range table {
			indices[index] = true
		}
	}

	objs := make(map[string]map[string]any, len(indices))
	for index := range indices {
		fields := strings.SplitN(index, ".", 4)
		if len(fields) < 4 {
			continue
		}
		vpls, port, vlan := fields[1], fields[2], fields[3]
		name := fmt.Sprintf("%s-%s-%s", vlan, DecodeALUPort(port), vlan)

		attrs := map[string]any{
			"name": name,
			"vpls": vpls,
			"port": port,
			"vlan": vlan,
		}
		for oidName, table := range raw {
			if val, ok := table[index]; ok {
				if aluSAPIntOIDs[oidName] {
					val = coerceInt(val)
				}
				attrs[oidName] = val
			}
		}
		objs[name] = attrs
	}
	return objs, nil
}
