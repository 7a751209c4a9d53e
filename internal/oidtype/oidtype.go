// Package oidtype holds the OID type table the TSDB persister consults
// when deciding how to coerce a sample value and which TSDB row type to
// create a variable with. It reuses gosnmp's Asn1BER tag constants as the
// type vocabulary rather than inventing a parallel enum, since those tags
// are exactly what an SNMP poller would have attached to the value in the
// first place.
package oidtype

import "github.com/gosnmp/gosnmp"

// RowType is the TSDB's notion of a variable's storage representation,
// derived from an Asn1BER tag.
type RowType int

const (
	RowTypeUnknown RowType = iota
	RowTypeCounter
	RowTypeGauge
	RowTypeString
)

// Table maps an OID suffix (e.g. "ifInOctets") to the Asn1BER tag the
// poller reported for it. It is built once at worker start and never
// refreshed mid-process, matching the TSDB
// persister's "OID-set configuration held in memory" contract.
type Table struct {
	types map[string]gosnmp.Asn1BER
}

// NewTable builds a Table from an oidName -> Asn1BER mapping.
func NewTable(types map[string]gosnmp.Asn1BER) *Table {
	if types == nil {
		types = map[string]gosnmp.Asn1BER{}
	}
	return &Table{types: types}
}

// Lookup returns the Asn1BER tag registered for oidName, defaulting to
// Gauge32 (the safest guess for an unknown counter-shaped numeric value)
// when the OID was never registered.
func (t *Table) Lookup(oidName string) gosnmp.Asn1BER {
	if ber, ok := t.types[oidName]; ok {
		return ber
	}
	return gosnmp.Gauge32
}

// RowTypeFor maps an Asn1BER tag to the TSDB row type used when creating a
// variable for that OID.
func RowTypeFor(ber gosnmp.Asn1BER) RowType {
	switch ber {
	case gosnmp.Counter32, gosnmp.Counter64:
		return RowTypeCounter
	case gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Integer, gosnmp.Uinteger32:
		return RowTypeGauge
	case gosnmp.OctetString, gosnmp.IPAddress, gosnmp.ObjectIdentifier:
		return RowTypeString
	default:
		return RowTypeUnknown
	}
}

// IsInteger reports whether values of this type should be integer-coerced
// before history comparison, matching the reconciler's "integer set"
// attribute handling rule.
func IsInteger(ber gosnmp.Asn1BER) bool {
	switch ber {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		return true
	default:
		return false
	}
}
