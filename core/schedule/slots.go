package schedule

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

// SlotRange is the wall-clock range of a slot, as HH:MM.
type SlotRange struct {
	Slot  int    `json:"slot"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Slots is the fixed daily timetable.
var Slots = []SlotRange{
	{Slot: 1, Start: "07:00", End: "08:30"},
	{Slot: 2, Start: "08:45", End: "10:15"},
	{Slot: 3, Start: "10:30", End: "12:00"},
	{Slot: 4, Start: "13:00", End: "14:30"},
	{Slot: 5, Start: "14:45", End: "16:15"},
	{Slot: 6, Start: "16:30", End: "18:00"},
}

const (
	MinSlot = 1
	MaxSlot = 6
)

var errUnknownSlot = errors.New("unknown slot")

// SlotTimes returns the start & end of slot on date (YYYY-MM-DD) in loc.
func SlotTimes(date string, slot int, loc *time.Location) (time.Time, time.Time, error) {
	if slot < MinSlot || slot > MaxSlot {
		return time.Time{}, time.Time{}, errUnknownSlot
	}
	day, err := core.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "parsing date")
	}
	if loc == nil {
		loc = time.UTC
	}

	rng := Slots[slot-1]
	at := func(hhmm string) (time.Time, error) {
		t, err := time.Parse("15:04", hhmm)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	start, err := at(rng.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := at(rng.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
