package history

import "fmt"

// lspRenameMap maps MPLS LSP OID names to the attribute names the
// history table stores them under.
var lspRenameMap = map[string]string{
	"mplsLspInfoState": "state",
	"mplsLspInfoFrom":  "srcaddr",
	"mplsLspInfoTo":    "dstaddr",
}

// LSPBuilder builds the LSP operational-status snapshot. There is no
// separate name OID; the raw table index itself is the entity key.
type LSPBuilder struct{}

// NewLSPBuilder returns the LSP reconciler's row builder.
func NewLSPBuilder() *LSPBuilder { return &LSPBuilder{} }

func (b *LSPBuilder) KeyAttr() string { return "lsp_index" }

func (b *LSPBuilder) Build(raw map[string]map[string]any) (map[string]map[string]any, error) {
	indices := map[string]bool{}
	for _, table := range raw {
		for index := range table {
			indices[index] = true
		}
	}

	objs := make(map[string]map[string]any, len(indices))
	for index := range indices {
		attrs := map[string]any{"lsp_index": index}
		for oidName, table := range raw {
			val, ok := table[index]
			if !ok {
				continue
			}
			name, renamed := lspRenameMap[oidName]
			if !renamed {
				name = oidName
			}
			if oidName == "mplsLspInfoState" {
				attrs[name] = coerceInt(val)
			} else {
				attrs[name] = fmt.Sprint(val)
			}
		}
		objs[index] = attrs
	}
	return objs, nil
}
