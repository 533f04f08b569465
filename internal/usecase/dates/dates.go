// Package dates implements calendar helpers exposed as tools: relative date
// expressions, business day counting with US holidays, and range formatting.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dayFormat = "2006-01-02"

// CurrentDate is a snapshot of the clock in the formats callers display.
type CurrentDate struct {
	CurrentDate     string `json:"current_date"`
	CurrentTime     string `json:"current_time"`
	CurrentDateTime string `json:"current_datetime"`
	DayOfWeek       string `json:"day_of_week"`
	MonthName       string `json:"month_name"`
	Year            int    `json:"year"`
	ISOWeek         int    `json:"iso_week"`
	DayOfYear       int    `json:"day_of_year"`
}

// Now returns the current date and time information.
func Now() CurrentDate {
	return currentDateAt(time.Now())
}

func currentDateAt(now time.Time) CurrentDate {
	_, week := now.ISOWeek()
	return CurrentDate{
		CurrentDate:     now.Format(dayFormat),
		CurrentTime:     now.Format("15:04:05"),
		CurrentDateTime: now.Format("2006-01-02 15:04:05"),
		DayOfWeek:       now.Weekday().String(),
		MonthName:       now.Month().String(),
		Year:            now.Year(),
		ISOWeek:         week,
		DayOfYear:       now.YearDay(),
	}
}

// RelativeDate is the resolution of a natural-language date expression.
type RelativeDate struct {
	TargetDate    string `json:"target_date"`
	DayOfWeek     string `json:"day_of_week"`
	FormattedDate string `json:"formatted_date"`
	DaysFromToday int    `json:"days_from_today"`
	IsWeekend     bool   `json:"is_weekend"`
	IsBusinessDay bool   `json:"is_business_day"`
}

// CalculateRelativeDate resolves expressions like "next thursday", "in 2
// weeks" or "december 25" against referenceDate (YYYY-MM-DD, empty = today).
func CalculateRelativeDate(expression, referenceDate string) (*RelativeDate, error) {
	ref := midnight(time.Now())
	if referenceDate != "" {
		parsed, err := time.Parse(dayFormat, referenceDate)
		if err != nil {
			return nil, fmt.Errorf("invalid reference date %q: %w", referenceDate, err)
		}
		ref = parsed
	}

	target, err := resolveExpression(strings.ToLower(strings.TrimSpace(expression)), ref)
	if err != nil {
		return nil, err
	}

	weekday := target.Weekday()
	return &RelativeDate{
		TargetDate:    target.Format(dayFormat),
		DayOfWeek:     weekday.String(),
		FormattedDate: target.Format("January 02, 2006"),
		DaysFromToday: daysBetween(midnight(time.Now()), target),
		IsWeekend:     weekday == time.Saturday || weekday == time.Sunday,
		IsBusinessDay: weekday != time.Saturday && weekday != time.Sunday,
	}, nil
}

func resolveExpression(expression string, ref time.Time) (time.Time, error) {
	switch {
	case expression == "today":
		return ref, nil
	case expression == "tomorrow":
		return ref.AddDate(0, 0, 1), nil
	case expression == "yesterday":
		return ref.AddDate(0, 0, -1), nil
	case strings.HasPrefix(expression, "next "):
		return nextWeekday(ref, strings.TrimPrefix(expression, "next "))
	case strings.HasPrefix(expression, "this "):
		return thisWeekday(ref, strings.TrimPrefix(expression, "this "))
	case strings.HasPrefix(expression, "in "):
		return parseInExpression(expression, ref)
	case strings.Contains(expression, " ago"):
		return parseAgoExpression(expression, ref)
	default:
		return parseSpecificDate(expression, ref), nil
	}
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// nextWeekday returns the next occurrence of the named weekday, always at
// least one day ahead.
func nextWeekday(ref time.Time, dayName string) (time.Time, error) {
	target, ok := weekdayNames[dayName]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid day name: %s", dayName)
	}
	ahead := (int(target) - int(ref.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return ref.AddDate(0, 0, ahead), nil
}

// thisWeekday returns the named weekday in the reference date's week, where
// weeks run Monday through Sunday. The result can be in the past.
func thisWeekday(ref time.Time, dayName string) (time.Time, error) {
	target, ok := weekdayNames[dayName]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid day name: %s", dayName)
	}
	diff := mondayIndex(target) - mondayIndex(ref.Weekday())
	return ref.AddDate(0, 0, diff), nil
}

// mondayIndex maps a weekday to the Monday=0..Sunday=6 scale.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// parseInExpression handles "in N days/weeks/months". Months are approximated
// as 30 days.
func parseInExpression(expression string, ref time.Time) (time.Time, error) {
	parts := strings.Fields(expression)
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("could not parse expression: %s", expression)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse expression: %s", expression)
	}
	days, err := unitDays(parts[2], n)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse expression: %s", expression)
	}
	return ref.AddDate(0, 0, days), nil
}

// parseAgoExpression handles "N days/weeks/months ago".
func parseAgoExpression(expression string, ref time.Time) (time.Time, error) {
	parts := strings.Fields(strings.ReplaceAll(expression, " ago", ""))
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("could not parse expression: %s", expression)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse expression: %s", expression)
	}
	days, err := unitDays(parts[1], n)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse expression: %s", expression)
	}
	return ref.AddDate(0, 0, -days), nil
}

func unitDays(unit string, n int) (int, error) {
	switch {
	case strings.HasPrefix(unit, "day"):
		return n, nil
	case strings.HasPrefix(unit, "week"):
		return n * 7, nil
	case strings.HasPrefix(unit, "month"):
		return n * 30, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}

// parseSpecificDate tries month-day forms ("december 25", "dec 25", "12/25",
// "12-25") in the reference year. An unparseable expression falls back to the
// reference date.
func parseSpecificDate(expression string, ref time.Time) time.Time {
	for _, layout := range []string{"January 2", "Jan 2", "1/2", "1-2"} {
		parsed, err := time.Parse(layout, titleWords(expression))
		if err != nil {
			continue
		}
		return time.Date(ref.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	}
	return ref
}

// titleWords uppercases each word's first letter so month names match Go's
// case-sensitive layouts.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// BusinessDays is the result of counting working days in a range.
type BusinessDays struct {
	BusinessDays int    `json:"business_days"`
	TotalDays    int    `json:"total_days"`
	WeekendDays  int    `json:"weekend_days"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// BusinessDaysBetween counts weekdays between two YYYY-MM-DD dates inclusive.
// With excludeHolidays, US federal holidays do not count. A reversed range is
// normalized.
func BusinessDaysBetween(startDate, endDate string, excludeHolidays bool) (*BusinessDays, error) {
	start, err := time.Parse(dayFormat, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dayFormat, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if start.After(end) {
		start, end = end, start
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if excludeHolidays && isHoliday(d) {
			continue
		}
		count++
	}

	total := daysBetween(start, end) + 1
	return &BusinessDays{
		BusinessDays: count,
		TotalDays:    total,
		WeekendDays:  total - count,
		StartDate:    startDate,
		EndDate:      endDate,
	}, nil
}

// isHoliday reports whether d is one of the recognized US holidays: New
// Year's Day, Independence Day, Christmas, Labor Day, Thanksgiving.
func isHoliday(d time.Time) bool {
	year := d.Year()
	switch {
	case d.Month() == time.January && d.Day() == 1:
		return true
	case d.Month() == time.July && d.Day() == 4:
		return true
	case d.Month() == time.December && d.Day() == 25:
		return true
	}
	if sameDay(d, firstWeekdayOfMonth(year, time.September, time.Monday)) {
		return true
	}
	// Thanksgiving: fourth Thursday of November.
	thanksgiving := firstWeekdayOfMonth(year, time.November, time.Thursday).AddDate(0, 0, 21)
	return sameDay(d, thanksgiving)
}

func firstWeekdayOfMonth(year int, month time.Month, weekday time.Weekday) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// DateRange is a human-readable rendering of a date span.
type DateRange struct {
	ShortFormat  string `json:"short_format"`
	MediumFormat string `json:"medium_format"`
	LongFormat   string `json:"long_format"`
	DurationDays int    `json:"duration_days"`
	DurationText string `json:"duration_text"`
}

// FormatDateRange renders start..end (YYYY-MM-DD, inclusive) in short,
// medium and long forms with a duration summary.
func FormatDateRange(startDate, endDate string) (*DateRange, error) {
	start, err := time.Parse(dayFormat, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dayFormat, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	days := daysBetween(start, end) + 1
	return &DateRange{
		ShortFormat:  start.Format("01/02") + " - " + end.Format("01/02/2006"),
		MediumFormat: start.Format("Jan 02") + " - " + end.Format("Jan 02, 2006"),
		LongFormat:   start.Format("January 02") + " - " + end.Format("January 02, 2006"),
		DurationDays: days,
		DurationText: durationText(days),
	}, nil
}

// durationText renders a day count as "N weeks and M days" style text.
// Months are approximated as 30 days.
func durationText(days int) string {
	switch {
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days == 7:
		return "1 week"
	case days < 30:
		weeks, rest := days/7, days%7
		if rest == 0 {
			return fmt.Sprintf("%d weeks", weeks)
		}
		return fmt.Sprintf("%d weeks and %d days", weeks, rest)
	default:
		months, rest := days/30, days%30
		if rest == 0 {
			return fmt.Sprintf("%d months", months)
		}
		return fmt.Sprintf("%d months and %d days", months, rest)
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(midnight(b).Sub(midnight(a)).Hours() / 24)
}
