// Package history implements the History Reconciler (C6): it turns a
// fresh snapshot of interface, LSP, or service-access-point state into a
// minimal add/change/delete diff against a table of interval-valued rows.
package history

import (
	"errors"
	"time"
)

// ErrDeviceNotFound is returned when no live device row matches the
// device name a result names; per spec.md §4.5 this is fatal for the
// result (the caller drops it, per the data-error taxonomy).
var ErrDeviceNotFound = errors.New("history: no live device row for device name")

// Row is one interval-valued history row: begin_time/end_time form a
// half-open interval, end_time == nil meaning +Infinity, i.e. live.
type Row struct {
	ID        int64
	DeviceID  int64
	BeginTime time.Time
	EndTime   *time.Time
	Attrs     map[string]any
}

// Live reports whether the row is the current live row for its entity.
func (r Row) Live() bool { return r.EndTime == nil }
