package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pearldental/clinic-booking/internal/config"
)

var (
	ErrInvalidDateRange = errors.New("end date must not be before start date")
	ErrInvalidLimit     = errors.New("limit must be a positive integer")
	ErrInvalidBlockSize = errors.New("block size must be at least 2")
)

// Engine answers availability questions against the slot store. Results
// are advisory: slots can be claimed between a query and the booking, so
// the coordinator always re-validates at reservation time.
type Engine struct {
	store        Store
	loc          *time.Location
	openHour     int
	closeHour    int
	slotDuration time.Duration
	horizon      time.Duration

	now func() time.Time // injectable for tests
}

func NewEngine(store Store, cfg config.Config) (*Engine, error) {
	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("load clinic timezone: %w", err)
	}

	return &Engine{
		store:        store,
		loc:          loc,
		openHour:     cfg.OpenHour,
		closeHour:    cfg.CloseHour,
		slotDuration: cfg.SlotDuration,
		horizon:      cfg.EarliestHorizon,
		now:          time.Now,
	}, nil
}

// SlotDuration exposes the calendar granularity to the coordinator.
func (e *Engine) SlotDuration() time.Duration {
	return e.slotDuration
}

// Location returns the clinic reference timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// dayWindow returns the business-hours bounds of the civil date in the
// clinic timezone.
func (e *Engine) dayWindow(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	open := time.Date(y, m, d, e.openHour, 0, 0, 0, e.loc)
	close := time.Date(y, m, d, e.closeHour, 0, 0, 0, e.loc)
	return open, close
}

// ListSlots returns free slots between startDate and endDate inclusive,
// ascending by start time, each day bounded by business hours.
func (e *Engine) ListSlots(ctx context.Context, startDate, endDate time.Time) ([]Slot, error) {
	startY, startM, startD := startDate.Date()
	endY, endM, endD := endDate.Date()
	start := time.Date(startY, startM, startD, 0, 0, 0, 0, e.loc)
	end := time.Date(endY, endM, endD, 0, 0, 0, 0, e.loc)

	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	var result []Slot
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		open, close := e.dayWindow(day)
		slots, err := e.store.ListFreeBetween(ctx, open, close)
		if err != nil {
			return nil, fmt.Errorf("list slots for %s: %w", day.Format("2006-01-02"), err)
		}
		result = append(result, slots...)
	}

	return result, nil
}

// ListEarliest returns up to limit free slots in [now, now+horizon),
// ascending by start time. An empty result is success, not an error.
func (e *Engine) ListEarliest(ctx context.Context, limit int) ([]Slot, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	now := e.now()
	slots, err := e.store.ListFreeEarliest(ctx, now, now.Add(e.horizon), limit)
	if err != nil {
		return nil, fmt.Errorf("list earliest slots: %w", err)
	}

	return slots, nil
}

// FindConsecutiveBlocks slides a window of length size over the day's free
// slots ordered by time. A window is a block iff every adjacent pair is
// separated by exactly one slot duration; a reserved or missing slot in
// between disqualifies it.
func (e *Engine) FindConsecutiveBlocks(ctx context.Context, date time.Time, size int) ([]Block, error) {
	if size < 2 {
		return nil, ErrInvalidBlockSize
	}

	open, close := e.dayWindow(date)
	slots, err := e.store.ListFreeBetween(ctx, open, close)
	if err != nil {
		return nil, fmt.Errorf("list slots for blocks: %w", err)
	}

	var blocks []Block
	for i := 0; i+size <= len(slots); i++ {
		consecutive := true
		for j := 0; j < size-1; j++ {
			gap := slots[i+j+1].StartTime.Sub(slots[i+j].StartTime)
			if gap != e.slotDuration {
				consecutive = false
				break
			}
		}
		if !consecutive {
			continue
		}

		last := slots[i+size-1]
		blocks = append(blocks, Block{
			StartSlotID: slots[i].ID,
			StartTime:   slots[i].StartTime,
			EndTime:     last.StartTime.Add(e.slotDuration),
		})
	}

	return blocks, nil
}
