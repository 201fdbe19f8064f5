package bot

import (
	"fmt"
	"sort"
	"strings"

	"ticketwatch/internal/model"
)

// FormatWatchList formats the watch requests for display.
func FormatWatchList(watches []model.WatchRequest) string {
	if len(watches) == 0 {
		return "No movies in list. Use /add_movie to add one."
	}
	var b strings.Builder
	b.WriteString("Watched movies:\n")
	for _, w := range watches {
		fmt.Fprintf(&b, "\n#%d %s\n", w.ID, w.MovieName)
		fmt.Fprintf(&b, "   keywords: %s\n", strings.Join(w.Keywords, ", "))
		fmt.Fprintf(&b, "   theatres: %s\n", w.TheatreLabel())
		fmt.Fprintf(&b, "   locations: %s\n", strings.Join(w.Locations, ", "))
	}
	return b.String()
}

// FormatAlertList formats fired alerts, oldest first.
func FormatAlertList(state model.AlertState) string {
	if len(state) == 0 {
		return "No alerts fired yet."
	}

	recs := make([]model.AlertRecord, 0, len(state))
	for _, r := range state {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, c := recs[i].FiredAt, recs[j].FiredAt
		switch {
		case a == nil && c == nil:
			return recs[i].Key < recs[j].Key
		case a == nil:
			return true
		case c == nil:
			return false
		case a.Equal(*c):
			return recs[i].Key < recs[j].Key
		}
		return a.Before(*c)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Fired alerts (%d):\n", len(recs))
	for _, r := range recs {
		when := "unknown time"
		if r.FiredAt != nil {
			when = r.FiredAt.UTC().Format("2006-01-02 15:04 UTC")
		}
		fmt.Fprintf(&b, "\n%s\n   %s\n", r.Key, when)
	}
	b.WriteString("\nUse /forget <key> to allow an alert to fire again.")
	return b.String()
}
