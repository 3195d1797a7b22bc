package api

import (
	"context"
	"fmt"

	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/model"
	"sportkeeper/internal/schedule"
)

// BatchResult reports how far a multi-occurrence submission got.
type BatchResult struct {
	Requested int
	Created   []model.Slot
}

// BatchError is returned when one occurrence of a batch fails. Slots created
// before it are not rolled back.
type BatchError struct {
	Index    int
	Interval schedule.Interval
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("occurrence %d (%s): %v", e.Index+1, schedule.FormatLocal(e.Interval.Start), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// CreateSlots submits one slot per occurrence, in order, waiting for each
// response before sending the next. It stops at the first failure.
func (c *Client) CreateSlots(ctx context.Context, tmpl SlotRequest, occurrences []schedule.Interval) (BatchResult, error) {
	res := BatchResult{Requested: len(occurrences), Created: make([]model.Slot, 0, len(occurrences))}

	for i, occ := range occurrences {
		if err := ctx.Err(); err != nil {
			return res, &BatchError{Index: i, Interval: occ, Err: err}
		}

		req := tmpl
		req.StartAt = schedule.FormatLocal(occ.Start)
		req.EndAt = schedule.FormatLocal(occ.End)

		slot, err := c.CreateSlot(ctx, req)
		if err != nil {
			appLog.Error("slot batch stopped", err,
				"created", len(res.Created),
				"requested", res.Requested,
				"start_at", req.StartAt,
			)
			return res, &BatchError{Index: i, Interval: occ, Err: err}
		}
		res.Created = append(res.Created, slot)
	}

	appLog.Info("slot batch submitted", "created", len(res.Created), "activity", tmpl.Activity.Code)
	return res, nil
}
