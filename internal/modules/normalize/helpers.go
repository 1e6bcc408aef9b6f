package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/crossfolio/internal/domain"
)

// currencyOrDefault normalizes a currency code, falling back when absent
func currencyOrDefault(code string, fallback domain.Currency) domain.Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fallback
	}
	return domain.Currency(code)
}

// parseTimestamp parses an RFC3339 timestamp or a Unix epoch-second string.
// An empty value falls back to the payload fetch time.
func parseTimestamp(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	var epoch int64
	if _, err := fmt.Sscanf(value, "%d", &epoch); err == nil && epoch > 0 {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// timeFromUnix converts epoch seconds to UTC time
func timeFromUnix(epoch int64) time.Time {
	return time.Unix(epoch, 0).UTC()
}
