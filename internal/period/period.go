// Package period строит недельные расчётные периоды в часовом поясе студии.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/studiopay/internal/model"
)

const (
	dateLayout     = "2006-01-02"
	labelSeparator = ".."
)

// Calendar задаёт часовой пояс студии и день начала недели.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// NewCalendar создаёт календарь. Пустой часовой пояс означает UTC.
func NewCalendar(loc *time.Location, weekStart time.Weekday) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, WeekStart: weekStart}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Week возвращает неделю, содержащую момент t.
func (c Calendar) Week(t time.Time) model.Period {
	local := t.In(c.loc())
	offset := (int(local.Weekday()) - int(c.WeekStart) + 7) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, c.loc())
	return c.fromStart(start)
}

// Next возвращает неделю, следующую за p.
func (c Calendar) Next(p model.Period) model.Period {
	s := p.Start.In(c.loc())
	return c.fromStart(time.Date(s.Year(), s.Month(), s.Day()+7, 0, 0, 0, 0, c.loc()))
}

// Between возвращает недели, начиная с недели, содержащей from, чьё начало раньше until.
func (c Calendar) Between(from, until time.Time) []model.Period {
	var weeks []model.Period
	for w := c.Week(from); w.Start.Before(until); w = c.Next(w) {
		weeks = append(weeks, w)
	}
	return weeks
}

// fromStart строит период длиной 7 суток; конец включительно, за 1нс до начала следующей недели.
// Сутки считаются по календарю, чтобы переход на летнее время не сдвигал границы.
func (c Calendar) fromStart(start time.Time) model.Period {
	next := time.Date(start.Year(), start.Month(), start.Day()+7, 0, 0, 0, 0, c.loc())
	end := next.Add(-time.Nanosecond)
	return model.Period{
		Start: start,
		End:   end,
		Label: Label(start, end),
	}
}

// Label строит каноническую метку периода по датам начала и конца.
func Label(start, end time.Time) string {
	return start.Format(dateLayout) + labelSeparator + end.Format(dateLayout)
}

// ParseWeekday разбирает название дня недели («monday», «Sunday», ...).
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
