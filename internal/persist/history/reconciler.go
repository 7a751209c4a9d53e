package history

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// RowBuilder turns a raw poll snapshot (oid name -> index -> value) into
// the table's natural-key-addressed attribute maps, applying whatever
// vendor-specific renaming, coercion, or synthesis the variant requires.
// This is the Go equivalent of each Python subclass's _build_objs
// override, selected through the registry instead of class inheritance.
type RowBuilder interface {
	// KeyAttr names the attribute within each built row that holds the
	// table's natural key (ifDescr, the synthesized SAP name, the LSP
	// index). It is excluded from change comparison.
	KeyAttr() string
	// Build returns entity_key -> attrs for every entity in the snapshot.
	Build(raw map[string]map[string]any) (map[string]map[string]any, error)
}

// Reconciler is the generic diff-and-apply engine (C6) shared by every
// vendor-specific variant; only RowBuilder differs between them.
type Reconciler struct {
	store   Store
	table   string
	builder RowBuilder
}

// NewReconciler builds a Reconciler over a table and a RowBuilder.
func NewReconciler(store Store, table string, builder RowBuilder) *Reconciler {
	return &Reconciler{store: store, table: table, builder: builder}
}

// Reconcile runs the add/change/delete diff for one device's snapshot and
// applies it. now is supplied by the caller so the "NOW" sentinel from the
// reference implementation is reproducible in tests; this implementation
// resolved the sentinel-timestamp open question in favor of real
// time.Time values with a nullable end_time as the live predicate.
func (r *Reconciler) Reconcile(ctx context.Context, deviceName string, raw map[string]map[string]any, now time.Time) (adds, changes, deletes int, err error) {
	deviceID, err := r.store.ResolveDeviceID(ctx, deviceName)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reconcile %s: %w", deviceName, err)
	}

	newData, err := r.builder.Build(raw)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reconcile %s: build snapshot: %w", deviceName, err)
	}

	oldRows, err := r.store.LiveRows(ctx, r.table, deviceID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reconcile %s: %w", deviceName, err)
	}

	keyAttr := r.builder.KeyAttr()

	for _, old := range oldRows {
		key, _ := old.Attrs[keyAttr].(string)
		newAttrs, present := newData[key]
		if !present {
			if err := r.store.CloseRow(ctx, r.table, old.ID, now); err != nil {
				return adds, changes, deletes, fmt.Errorf("reconcile %s: close %s: %w", deviceName, key, err)
			}
			deletes++
			continue
		}

		if attrsDiffer(old.Attrs, newAttrs, keyAttr) {
			if err := r.store.CloseRow(ctx, r.table, old.ID, now); err != nil {
				return adds, changes, deletes, fmt.Errorf("reconcile %s: close %s: %w", deviceName, key, err)
			}
			if err := r.store.InsertRow(ctx, r.table, Row{DeviceID: deviceID, BeginTime: now, Attrs: newAttrs}); err != nil {
				return adds, changes, deletes, fmt.Errorf("reconcile %s: insert %s: %w", deviceName, key, err)
			}
			changes++
		}
		delete(newData, key)
	}

	for key, attrs := range newData {
		if err := r.store.InsertRow(ctx, r.table, Row{DeviceID: deviceID, BeginTime: now, Attrs: attrs}); err != nil {
			return adds, changes, deletes, fmt.Errorf("reconcile %s: insert %s: %w", deviceName, key, err)
		}
		adds++
	}

	return adds, changes, deletes, nil
}

// attrsDiffer reports whether any attribute in new, other than keyAttr,
// differs from old's value for that attribute -- matching the reference
// diff's "any attr in new except key differs from old's" rule exactly.
// Numbers compare by value, so an integer attribute read back from the
// jsonb column as float64 equals the int64 the RowBuilder produced.
func attrsDiffer(old, new map[string]any, keyAttr string) bool {
	asFloat := func(v any) (float64, bool) {
		switch t := v.(type) {
		case int:
			return float64(t), true
		case int64:
			return float64(t), true
		case float64:
			return t, true
		}
		return 0, false
	}
	for k, v := range new {
		if k == keyAttr {
			continue
		}
		if a, ok := asFloat(old[k]); ok {
			if b, ok := asFloat(v); ok && a == b {
				continue
			}
		}
		if !reflect.DeepEqual(old[k], v) {
			return true
		}
	}
	return false
}
