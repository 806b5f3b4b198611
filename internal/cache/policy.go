package cache

import (
	"errors"
	"fmt"
	"time"
)

// Rotation names how often image build cache keys roll over. The key of an
// entry embeds the marker of the period it was written in, so once the
// period ends the key is never computed again and the entry ages out of
// whatever store holds it.
type Rotation string

const (
	RotationDaily   Rotation = "daily"
	RotationWeekly  Rotation = "weekly"
	RotationMonthly Rotation = "monthly"

	DefaultRotation = RotationWeekly
)

var errUnknownRotation = errors.New("parsing cache rotation")

// ParseRotation maps an action input to a Rotation. Empty selects the
// weekly default.
func ParseRotation(s string) (Rotation, error) {
	switch Rotation(s) {
	case "":
		return DefaultRotation, nil
	case RotationDaily, RotationWeekly, RotationMonthly:
		return Rotation(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want daily, weekly or monthly)", errUnknownRotation, s)
	}
}

// Marker renders the rotation period containing t. Weekly markers use the
// ISO week ("2026-W35"), daily the date ("2026-08-25"), monthly the month
// ("2026-08"). Times are taken in UTC so runners in different timezones
// agree on the period.
func (r Rotation) Marker(t time.Time) string {
	t = t.UTC()

	switch r {
	case RotationDaily:
		return t.Format("2006-01-02")
	case RotationMonthly:
		return t.Format("2006-01")
	default:
		year, week := t.ISOWeek()

		return fmt.Sprintf("%d-W%02d", year, week)
	}
}
