package core

import "time"

// secondsToTime converts a Unix-epoch-seconds wall-clock sample into a
// time.Time for display/logging.
func secondsToTime(wallSeconds float64) time.Time {
	sec := int64(wallSeconds)
	nsec := int64((wallSeconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

var processStartMono = time.Now()

// nowClock returns the current (wallSeconds, monoSeconds) pair the
// engine samples once per tick and threads through event calls: wall
// is Unix epoch seconds, mono is seconds since process start, immune
// to wall-clock adjustment.
func (s *DecoderState) nowClock() (wall, mono float64) {
	now := time.Now()
	wall = float64(now.UnixNano()) / 1e9
	mono = now.Sub(processStartMono).Seconds()
	return wall, mono
}
