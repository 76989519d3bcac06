package xlrd

import (
	"fmt"
	"math"
	"time"
)

const (
	xldaysTooLarge1900 = 2958466
	xldaysTooLarge1904 = 2958466 - 1462
)

var (
	epoch1904       = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// XLDateError is the base type for all datetime-related errors.
type XLDateError struct {
	Message string
}

func (e *XLDateError) Error() string {
	return e.Message
}

// XLDateNegative indicates that xldate < 0.00
type XLDateNegative struct {
	XLDateError
}

// XLDateTooLarge indicates Gregorian year 10000 or later
type XLDateTooLarge struct {
	XLDateError
}

// XLDateBadDatemode indicates that datemode arg is neither 0 nor 1
type XLDateBadDatemode struct {
	XLDateError
}

// XldateAsDatetime converts an Excel number (presumed to represent a date, a datetime or a time)
// into a time.Time value.
//
// xldate: The Excel number
// datemode: 0: 1900-based, 1: 1904-based.
//
// Serial numbers below 60 in the 1900 system count from 1899-12-31; from 60
// on they count from 1899-12-30, which absorbs the fictitious 1900-02-29.
// Times are rounded to Excel's millisecond resolution.
func XldateAsDatetime(xldate float64, datemode int) (time.Time, error) {
	if datemode != 0 && datemode != 1 {
		return time.Time{}, &XLDateBadDatemode{XLDateError{Message: fmt.Sprintf("Invalid datemode: %d", datemode)}}
	}
	if xldate < 0 || math.IsNaN(xldate) {
		return time.Time{}, &XLDateNegative{XLDateError{Message: fmt.Sprintf("xldate < 0.00: %f", xldate)}}
	}
	tooLarge := xldaysTooLarge1900
	if datemode == 1 {
		tooLarge = xldaysTooLarge1904
	}
	if xldate >= float64(tooLarge) {
		return time.Time{}, &XLDateTooLarge{XLDateError{Message: fmt.Sprintf("xldate too large: %f", xldate)}}
	}

	var epoch time.Time
	switch {
	case datemode == 1:
		epoch = epoch1904
	case xldate < 60:
		epoch = epoch1900
	default:
		epoch = epoch1900Minus1
	}

	days := int(xldate)
	fraction := xldate - float64(days)

	// Get the integer and decimal seconds in Excel's millisecond resolution.
	millis := int64(math.Round(fraction * 86400000.0))

	return epoch.AddDate(0, 0, days).Add(time.Duration(millis) * time.Millisecond), nil
}
