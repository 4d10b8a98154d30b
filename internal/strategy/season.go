package strategy

import "time"

// Season approximates earnings season by calendar month.
type Season struct {
	Months []time.Month
}

func SeasonFromMonths(months []int) Season {
	s := Season{}
	for _, m := range months {
		if m >= 1 && m <= 12 {
			s.Months = append(s.Months, time.Month(m))
		}
	}
	return s
}

func (s Season) IsEarnings(t time.Time) bool {
	m := t.Month()
	for _, em := range s.Months {
		if em == m {
			return true
		}
	}
	return false
}
