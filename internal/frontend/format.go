package frontend

import (
	"strconv"
	"time"
)

func number(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func percent(v float64, decimals int) string {
	return number(v, decimals) + "%"
}

// liters renders a volume with thousands separators.
func liters(v float64) string {
	return grouped(int64(v)) + " L"
}

func grouped(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := len(s) > 0 && s[0] == '-'
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// clock renders timestamps in the display time zone.
type clock struct {
	loc *time.Location
}

func (c clock) dateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(c.loc).Format("02/01/2006 15:04:05")
}

// date renders a calendar day. Days carry no zone and are not converted.
func (c clock) date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}
