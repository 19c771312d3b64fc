package utils

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var ErrInvalidMonth = errors.New("month must be in YYYY-MM format")
var ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")

// ParseMonth validates a "YYYY-MM" key and returns the first day of that month in UTC.
func ParseMonth(month string) (time.Time, error) {
	if !monthPattern.MatchString(month) {
		return time.Time{}, ErrInvalidMonth
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return t, nil
}

// ParseDate validates a "YYYY-MM-DD" key and returns midnight UTC of that day.
func ParseDate(date string) (time.Time, error) {
	if !datePattern.MatchString(date) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// DaysInMonth returns the number of calendar days in the month containing t.
func DaysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

// DayKeys returns every "YYYY-MM-DD" key of the month containing t, in order.
func DayKeys(t time.Time) []string {
	n := DaysInMonth(t)
	keys := make([]string, 0, n)
	for d := 1; d <= n; d++ {
		keys = append(keys, time.Date(t.Year(), t.Month(), d, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
	}
	return keys
}

// DateKey formats t as its "YYYY-MM-DD" key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKey formats t as its "YYYY-MM" key.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// TruncateToDay drops the time-of-day portion, keeping the date in UTC.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func NewInt(i int) *int {
	return &i
}

func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}
