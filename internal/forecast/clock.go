package forecast

import "time"

// shifted applies the provider's UTC offset as a flat addend. The result is
// formatted as UTC so no timezone database lookup takes place.
func shifted(ts int64, utcOffsetSeconds int) time.Time {
	return time.Unix(ts+int64(utcOffsetSeconds), 0).UTC()
}

// LocalClock formats ts as a 24-hour "HH:MM" string in the forecast location's local time.
func LocalClock(ts int64, utcOffsetSeconds int) string {
	return shifted(ts, utcOffsetSeconds).Format("15:04")
}

// ClockHour returns the 12-hour clock hour (1..12) of ts in local time.
func ClockHour(ts int64, utcOffsetSeconds int) int {
	h := shifted(ts, utcOffsetSeconds).Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}
