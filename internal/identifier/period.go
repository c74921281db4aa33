package identifier

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Period codes are two-part letter prefixes: a year letter (2021=A, 2022=B,
// …) followed by a month letter (Jan=A … Dec=L). Years more than 25 past the
// base roll into double letters (AA, AB, …) so the scheme never runs out.
const periodBaseYear = 2021

// PeriodCode derives the stable identifier prefix for the period containing t.
func PeriodCode(t time.Time) string {
	return yearLetters(t.Year()) + string(rune('A'+int(t.Month())-1))
}

func yearLetters(year int) string {
	offset := year - periodBaseYear
	if offset < 0 {
		offset = 0
	}
	if offset < 26 {
		return string(rune('A' + offset))
	}
	offset -= 26
	return string(rune('A'+offset/26)) + string(rune('A'+offset%26))
}

// FormatIdentifier renders prefix plus a zero-padded sequence. Three digits
// is the standard width; longer runs keep their natural width.
func FormatIdentifier(prefix string, sequence int) string {
	return fmt.Sprintf("%s%03d", prefix, sequence)
}

var identifierPattern = regexp.MustCompile(`^([A-Z]+)(\d{3,})$`)

// ParseIdentifier splits an identifier into period prefix and sequence
// number. Legacy identifiers with longer alpha prefixes parse too; anything
// unrecognized reports ok=false.
func ParseIdentifier(id string) (prefix string, sequence int, ok bool) {
	m := identifierPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, false
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], seq, true
}
