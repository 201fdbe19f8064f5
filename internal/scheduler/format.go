package scheduler

import (
	"fmt"
	"strings"
	"time"

	"ticketwatch/internal/model"
)

// FormatAlert formats the notification text for one alert.
func FormatAlert(movie, theatre, location string) string {
	var b strings.Builder
	b.WriteString("🎟 TICKETS LIVE!\n")
	fmt.Fprintf(&b, "Movie: %s\n", movie)
	fmt.Fprintf(&b, "Theatre: %s\n", theatre)
	fmt.Fprintf(&b, "Location: %s", location)
	return b.String()
}

// FormatAlertKey formats the notification text for key.
func FormatAlertKey(key model.AlertKey) string {
	movie, theatre, location, ok := key.Parts()
	if !ok {
		return "🎟 TICKETS LIVE!\n" + string(key)
	}
	return FormatAlert(movie, theatre, location)
}

// FormatReport renders a cycle report for chat replies.
func FormatReport(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle at %s (%s)\n", r.StartedAt.Format("2006-01-02 15:04 UTC"), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Watches: %d, fetches: %d, listings: %d\n", r.Requests, r.Fetches, r.Listings)
	fmt.Fprintf(&b, "Matches: %d, alerts sent: %d\n", r.Matches, r.AlertsFired)
	if r.SourceFailures+r.NormalizeFailures+r.DispatchFailures > 0 {
		fmt.Fprintf(&b, "Failures: %d fetch, %d payload, %d dispatch\n",
			r.SourceFailures, r.NormalizeFailures, r.DispatchFailures)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	return strings.TrimRight(b.String(), "\n")
}
