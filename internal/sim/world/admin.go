package world

import (
	"context"
	"errors"
)

type snapshotRequest struct {
	Resp chan snapshotResponse
}

type snapshotResponse struct {
	Tick uint64
	Err  error
}

var (
	ErrNoSnapshotSink   = errors.New("snapshot sink not configured")
	ErrSnapshotBusy     = errors.New("snapshot sink backpressure")
	ErrNothingSimulated = errors.New("no tick simulated yet")
)

// RequestSnapshot asks the running world loop to export the last completed
// tick to the snapshot sink. It returns the snapshot tick.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResponse, 1)
	select {
	case w.admin <- snapshotRequest{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Tick, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleSnapshotRequest(req snapshotRequest) {
	cur := w.tick.Load()
	var r snapshotResponse
	switch {
	case w.snapshotSink == nil:
		r.Err = ErrNoSnapshotSink
	case cur == 0:
		r.Err = ErrNothingSimulated
	default:
		r.Tick = cur - 1
		select {
		case w.snapshotSink <- w.ExportSnapshot(r.Tick):
		default:
			r.Err = ErrSnapshotBusy
		}
	}
	if req.Resp != nil {
		req.Resp <- r
	}
}
