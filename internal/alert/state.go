// Package alert decides which matches are new alerts and tracks fired keys.
//
// A key moves from unseen to fired exactly once. There is no way back: a
// fired key only disappears when an operator purges it from the store.
package alert

import (
	"time"

	"ticketwatch/internal/model"
)

// Evaluate derives the alert key for every match of movie and returns the
// keys absent from prior, in match order, together with a copy of prior that
// has those keys staged as fired at now. prior is not modified.
//
// A key present in prior counts as fired regardless of its record contents.
func Evaluate(movie string, matches []model.Match, prior model.AlertState, now time.Time) ([]model.AlertKey, model.AlertState) {
	updated := prior.Clone()

	var fresh []model.AlertKey
	for _, m := range matches {
		key := model.NewAlertKey(movie, m.TheatreName, m.LocationKey)
		if updated.Has(key) {
			continue
		}
		firedAt := now.UTC()
		updated[key] = model.AlertRecord{Key: key, FiredAt: &firedAt}
		fresh = append(fresh, key)
	}
	return fresh, updated
}

// Forget drops a staged key whose dispatch failed so that it is not
// persisted and fires again on the next cycle.
func Forget(state model.AlertState, key model.AlertKey) {
	delete(state, key)
}
