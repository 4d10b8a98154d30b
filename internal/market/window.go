package market

import "time"

type Window string

const (
	RegularHours Window = "REGULAR_HOURS"
	AfterHours   Window = "AFTER_HOURS"
	Overnight    Window = "OVERNIGHT"
	Premarket    Window = "PREMARKET"
)

// Clock is the broker's view of the exchange session.
type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Tradeable reports whether entries may be placed immediately.
func (w Window) Tradeable() bool {
	return w == RegularHours
}

// ClassifyWindow buckets now into a trading window. The clock decides regular
// hours so holidays and half days follow the exchange calendar.
func ClassifyWindow(now time.Time, clock Clock, loc *time.Location) Window {
	if clock.IsOpen {
		return RegularHours
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= 16*60 && minutes < 20*60:
		return AfterHours
	case minutes >= 4*60 && minutes < 9*60+30 && !clock.NextOpen.IsZero() && SameSessionDate(clock.NextOpen, local, loc):
		return Premarket
	default:
		return Overnight
	}
}

// SessionDate is the exchange-local calendar date of t at midnight in loc.
func SessionDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func SameSessionDate(a, b time.Time, loc *time.Location) bool {
	return SessionDate(a, loc).Equal(SessionDate(b, loc))
}

// RegularOpen is 09:30 exchange time on t's session date.
func RegularOpen(t time.Time, loc *time.Location) time.Time {
	return SessionDate(t, loc).Add(9*time.Hour + 30*time.Minute)
}

// MonthStart is the first instant of t's month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, _ := t.In(loc).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

// InOpenDelay reports whether now falls within delay after the regular open.
func InOpenDelay(now time.Time, clock Clock, delay time.Duration, loc *time.Location) bool {
	if !clock.IsOpen || delay <= 0 {
		return false
	}
	open := RegularOpen(now, loc)
	return !now.Before(open) && now.Before(open.Add(delay))
}

// InEntryCutoff reports whether now is within cutoff of the session close. New
// entries stop there so nothing opens after the end-of-day sweep.
func InEntryCutoff(now time.Time, clock Clock, cutoff time.Duration) bool {
	if !clock.IsOpen || cutoff <= 0 || clock.NextClose.IsZero() {
		return false
	}
	return !now.Before(clock.NextClose.Add(-cutoff))
}
