package history

import (
	"context"
	"time"
)

// fakeStore is an in-memory Store double for reconciler tests.
type fakeStore struct {
	deviceIDs map[string]int64
	rows      map[int64][]Row
	nextID    int64
}

func newFakeStore(devices map[string]int64) *fakeStore {
	return &fakeStore{deviceIDs: devices, rows: map[int64][]Row{}}
}

func (s *fakeStore) ResolveDeviceID(ctx context.Context, deviceName string) (int64, error) {
	id, ok := s.deviceIDs[deviceName]
	if !ok {
		return 0, ErrDeviceNotFound
	}
	return id, nil
}

func (s *fakeStore) LiveRows(ctx context.Context, table string, deviceID int64) ([]Row, error) {
	var out []Row
	for _, r := range s.rows[deviceID] {
		if r.Live() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) CloseRow(ctx context.Context, table string, id int64, endTime time.Time) error {
	for i, r := range s.rows[r0DeviceOf(s, id)] {
		if r.ID == id {
			t := endTime
			s.rows[r0DeviceOf(s, id)][i].EndTime = &t
		}
	}
	return nil
}

func (s *fakeStore) InsertRow(ctx context.Context, table string, row Row) error {
	s.nextID++
	row.ID = s.nextID
	s.rows[row.DeviceID] = append(s.rows[row.DeviceID], row)
	return nil
}

// r0DeviceOf finds which device a row id belongs to; fine for tests with
// a handful of rows.
func r0DeviceOf(s *fakeStore, id int64) int64 {
	for devID, rows := range s.rows {
		for _, r := range rows {
			if r.ID == id {
				return devID
			}
		}
	}
	return 0
}

func (s *fakeStore) liveCount(deviceID int64) int {
	n := 0
	for _, r := range s.rows[deviceID] {
		if r.Live() {
			n++
		}
	}
	return n
}
