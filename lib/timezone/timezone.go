package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/London")
	if err != nil {
		panic(err)
	}
}

// force timezone to be the club's local one because the servers
// running scans are not necessarily in the UK, and day arithmetic
// via <time.Time>.Year()/Month()/Day() depends on the location
func Now() time.Time {
	return time.Now().In(Location)
}

// Midnight truncates t to the start of its calendar day in the club's
// timezone.
func Midnight(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}

// FormatStamp renders t the way the booking site's frontend serializes
// dates, which is the only format its roster and bookings endpoints
// accept. It matches a javascript Date.toString() with a day zero-pad;
// the timezone label is a fixed literal the site never varies, even
// outside DST.
func FormatStamp(t time.Time) string {
	return t.In(Location).Format("Mon Jan 02 2006") + " 00:00:00 GMT+0100 (British Summer Time)"
}
