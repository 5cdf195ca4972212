package domain

import (
	"fmt"
	"time"
)

const slotLayout = "2006-01-02"

// SlotDate is a UTC calendar date in YYYY-MM-DD form.
type SlotDate string

// SlotOf returns the UTC calendar date containing t.
func SlotOf(t time.Time) SlotDate {
	return SlotDate(t.UTC().Format(slotLayout))
}

// ParseSlotDate validates a YYYY-MM-DD string.
func ParseSlotDate(value string) (SlotDate, error) {
	t, err := time.Parse(slotLayout, value)
	if err != nil {
		return "", fmt.Errorf("invalid slot date %q: %w", value, err)
	}
	return SlotOf(t), nil
}

// Time returns midnight UTC of the slot.
func (s SlotDate) Time() time.Time {
	t, err := time.Parse(slotLayout, string(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts the slot by n calendar days.
func (s SlotDate) AddDays(n int) SlotDate {
	return SlotOf(s.Time().AddDate(0, 0, n))
}

func (s SlotDate) String() string {
	return string(s)
}

// SlotRange returns the days slots ending at end, oldest first.
func SlotRange(end SlotDate, days int) []SlotDate {
	if days <= 0 {
		return nil
	}
	slots := make([]SlotDate, 0, days)
	for i := days - 1; i >= 0; i-- {
		slots = append(slots, end.AddDays(-i))
	}
	return slots
}
