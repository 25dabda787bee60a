package sonar

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedRecord is returned for sonar log lines that cannot be parsed.
var ErrMalformedRecord = errors.New("sonar: malformed record")

// ParseRecord reads a sonar log line "x y th r0 ... r15" holding the raw
// device pose followed by one range per device. Missing ranges are zero.
func ParseRecord(line string) (Reading, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Reading{}, fmt.Errorf("%d fields in %q: %w", len(fields), line, ErrMalformedRecord)
	}
	x, err := parseInt(fields[0])
	if err != nil {
		return Reading{}, fmt.Errorf("x %q: %w", fields[0], ErrMalformedRecord)
	}
	y, err := parseInt(fields[1])
	if err != nil {
		return Reading{}, fmt.Errorf("y %q: %w", fields[1], ErrMalformedRecord)
	}
	th, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("theta %q: %w", fields[2], ErrMalformedRecord)
	}

	var ranges [NumSonars]int
	for i, f := range fields[3:] {
		if i >= NumSonars {
			break
		}
		if ranges[i], err = parseInt(f); err != nil {
			return Reading{}, fmt.Errorf("range %d %q: %w", i, f, ErrMalformedRecord)
		}
	}
	return NewReading(PoseFromDevice(x, y, th), ranges), nil
}

// parseInt accepts integers and truncates decimal values.
func parseInt(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// FormatRecord writes r as a sonar log line with the pose converted back to
// device units.
func FormatRecord(w io.Writer, r Reading) error {
	x, y, th := DevicePose(r.Pose)
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %.6f ", x, y, th)
	for _, v := range r.Ranges {
		fmt.Fprintf(&b, "%d ", v)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
