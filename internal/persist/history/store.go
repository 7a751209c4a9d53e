package history

import (
	"context"
	"time"
)

// Store is the relational collaborator the reconciler needs: resolving a
// device name to its live device row, reading the live rows of one
// history table for that device, and applying the diff.
type Store interface {
	ResolveDeviceID(ctx context.Context, deviceName string) (int64, error)
	LiveRows(ctx context.Context, table string, deviceID int64) ([]Row, error)
	CloseRow(ctx context.Context, table string, id int64, endTime time.Time) error
	InsertRow(ctx context.Context, table string, row Row) error
}
