package types

import (
	"fmt"
	"time"
)

// Bucket is the reporting key stamped on stock lots and orders at creation.
type Bucket struct {
	Day   int `gorm:"column:day;not null" json:"day"`
	Week  int `gorm:"column:week;not null" json:"week"`
	Month int `gorm:"column:month;not null" json:"month"`
	Year  int `gorm:"column:year;not null" json:"year"`
}

// BucketFor computes the bucket of t in UTC. Week is the ISO week number.
func BucketFor(t time.Time) Bucket {
	u := t.UTC()
	_, week := u.ISOWeek()
	return Bucket{
		Day:   u.Day(),
		Week:  week,
		Month: int(u.Month()),
		Year:  u.Year(),
	}
}

// DayKey returns the (day, month, year) part of the bucket.
func (b Bucket) DayKey() DayKey {
	return DayKey{Day: b.Day, Month: b.Month, Year: b.Year}
}

// DayKey identifies one UTC calendar day.
type DayKey struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewDayKey validates that the triple names a real calendar day.
func NewDayKey(day, month, year int) (DayKey, error) {
	if year < 1970 || year > 9999 {
		return DayKey{}, fmt.Errorf("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return DayKey{}, fmt.Errorf("month %d out of range", month)
	}
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || start.Day() != day || int(start.Month()) != month {
		return DayKey{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	}
	return DayKey{Day: day, Month: month, Year: year}, nil
}

// DayKeyFor returns the UTC day containing t.
func DayKeyFor(t time.Time) DayKey {
	return BucketFor(t).DayKey()
}

// Start is midnight UTC of the day.
func (k DayKey) Start() time.Time {
	return time.Date(k.Year, time.Month(k.Month), k.Day, 0, 0, 0, 0, time.UTC)
}

// End is midnight UTC of the following day (exclusive bound).
func (k DayKey) End() time.Time {
	return k.Start().AddDate(0, 0, 1)
}

// Prev returns the previous calendar day.
func (k DayKey) Prev() DayKey {
	return DayKeyFor(k.Start().AddDate(0, 0, -1))
}

func (k DayKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, k.Month, k.Day)
}
