// Package retention holds the pure date math for the legal retention window.
// No side effects live here; the lifecycle service feeds it a request-scoped
// now and persists whatever it computes.
package retention

import (
	"time"

	"archivist/internal/archival/models"
)

// Period is the fixed legal retention window: an archived account must stay
// archived this long before permanent deletion is permitted.
const Period = 6 // calendar months

// PurgeDateFor returns archivedAt plus six calendar months.
//
// Calendar month addition is ambiguous at month-length boundaries. We clamp
// to the last valid day of the target month: archiving on Aug 31 schedules
// the purge for Feb 28 (or Feb 29 in a leap year), never Mar 2/3. Plain
// time.AddDate would normalize the overflow into the next month, which
// silently extends the legal window.
func PurgeDateFor(archivedAt time.Time) time.Time {
	return addCalendarMonths(archivedAt, Period)
}

// IsPurgeEligible reports whether the account's retention window has fully
// elapsed at now. Non-archived accounts are never eligible.
func IsPurgeEligible(acct *models.Account, now time.Time) bool {
	if acct == nil || !acct.Archived || acct.ScheduledPurgeAt == nil {
		return false
	}
	return !now.Before(*acct.ScheduledPurgeAt)
}

// Remaining returns how long until the account becomes purge-eligible,
// floored at zero. Used to populate the retention error surfaced to callers.
func Remaining(acct *models.Account, now time.Time) time.Duration {
	if acct == nil || acct.ScheduledPurgeAt == nil {
		return 0
	}
	d := acct.ScheduledPurgeAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func addCalendarMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	// time.Date normalizes month overflow, so month+months lands on the
	// right year/month pair; only the day needs clamping.
	target := time.Date(year, month+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month; day 0 of the next
// month is the last day of this one.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
