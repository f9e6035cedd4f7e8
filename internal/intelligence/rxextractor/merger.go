package rxextractor

import (
	"strings"
	"unicode"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ---------------------------------------------------------------------------
// Entity merging
// ---------------------------------------------------------------------------

// mergeStoplist holds tokens that pattern matching occasionally promotes to a
// name slot.  Candidates carrying one of these are never medications.
var mergeStoplist = map[string]bool{
	"mg":                 true,
	"ml":                 true,
	"tablet":             true,
	"cap":                true,
	"tab":                true,
	"unknown medication": true,
}

// MergerConfig controls candidate grouping.
type MergerConfig struct {
	// StrictNameMatch groups candidates only on exact lowercased name
	// equality.  The default containment grouping joins "augmentin" and
	// "augmentin duo" into one group, which is usually what prescriptions
	// need but can conflate unrelated short names.
	StrictNameMatch bool
}

// Merger collapses the combined lexicon and pattern candidate lists into one
// record per medication, keeping the best-scored member of each name group
// and backfilling its weaker fields from the rest of the group.
type Merger struct {
	strict bool
}

func NewMerger(cfg MergerConfig) *Merger {
	return &Merger{strict: cfg.StrictNameMatch}
}

// nameGroup keeps insertion order: the first-seen name in a cluster becomes
// the permanent group key, and output order follows key creation order.
type nameGroup struct {
	key     string
	members []*medication.MedicationCandidate
}

// Merge reduces candidates to one record per medication name.  Candidates
// with empty, single-character, purely numeric or stoplisted names are
// dropped first; survivors are grouped by name containment (or exact
// equality under StrictNameMatch), and each group is reduced to its
// best-scored member with per-field backfill.  Merging an already-merged
// list returns it unchanged.
func (m *Merger) Merge(candidates []*medication.MedicationCandidate) []medication.MedicationRecord {
	var groups []*nameGroup

	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		lower := strings.ToLower(name)
		if len(name) < 2 || isNumeric(name) || mergeStoplist[lower] {
			continue
		}

		var grp *nameGroup
		for _, g := range groups {
			if m.sameGroup(g.key, lower) {
				grp = g
				break
			}
		}
		if grp == nil {
			grp = &nameGroup{key: lower}
			groups = append(groups, grp)
		}
		grp.members = append(grp.members, c)
	}

	var merged []medication.MedicationRecord
	for _, g := range groups {
		if len(g.members) == 0 {
			continue
		}
		merged = append(merged, reduceGroup(g.members))
	}
	return merged
}

func (m *Merger) sameGroup(key, name string) bool {
	if key == name {
		return true
	}
	if m.strict {
		return false
	}
	return strings.Contains(key, name) || strings.Contains(name, key)
}

// reduceGroup picks the highest-scoring member as the representative (ties
// keep the earliest member) and then lets every other member upgrade
// individual fields through the comparator table.
func reduceGroup(members []*medication.MedicationCandidate) medication.MedicationRecord {
	bestIdx := 0
	bestScore := scoreCandidate(members[0])
	for i := 1; i < len(members); i++ {
		if s := scoreCandidate(members[i]); s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}

	rep := members[bestIdx]
	rec := medication.MedicationRecord{
		Name:         rep.Name,
		Dosage:       rep.Dosage,
		Frequency:    rep.Frequency,
		Duration:     rep.Duration,
		Instructions: rep.Instructions,
		Confidence:   rep.Confidence,
		Source:       rep.Source,
	}

	for i, c := range members {
		if i == bestIdx {
			continue
		}
		if betterDosage(c.Dosage, rec.Dosage) {
			rec.Dosage = c.Dosage
		}
		if betterFrequency(c.Frequency, rec.Frequency) {
			rec.Frequency = c.Frequency
		}
		if betterDuration(c.Duration, rec.Duration) {
			rec.Duration = c.Duration
		}
		if rec.Instructions == "" && c.Instructions != "" {
			rec.Instructions = c.Instructions
		}
	}
	return rec
}

// scoreCandidate rates field completeness.  Unit-bearing dosages outrank the
// "1 tablet" default, which outranks the unknown sentinel; any frequency
// beyond the bare fallback and any duration beyond the default earn credit,
// with the common short courses rated highest.  The candidate's own
// confidence breaks structural ties.
func scoreCandidate(c *medication.MedicationCandidate) float64 {
	score := c.Confidence

	switch {
	case strings.Contains(c.Dosage, "mg") || strings.Contains(c.Dosage, "ml"):
		score += 3
	case c.Dosage == "1 tablet":
		score += 1
	case c.Dosage != "" && c.Dosage != medication.UnknownDosage:
		score += 2
	}

	switch {
	case strings.Contains(c.Frequency, "1-0-1") || strings.Contains(c.Frequency, "twice"):
		score += 2
	case c.Frequency != medication.DefaultFrequency:
		score += 1
	}

	switch {
	case c.Duration == "5 days" || c.Duration == "1 week":
		score += 2
	case c.Duration != medication.DefaultDuration && hasDigit(c.Duration):
		score += 1
	}

	return score
}

// ---------------------------------------------------------------------------
// Field comparators
// ---------------------------------------------------------------------------
//
// One named comparator per field.  Each reports whether next should replace
// current during backfill; they deliberately upgrade only away from the
// documented sentinels so that backfill can never downgrade a field the
// representative already filled properly.

func betterDosage(next, current string) bool {
	if next == "" || next == current {
		return false
	}
	if current == medication.UnknownDosage && next != medication.UnknownDosage {
		return true
	}
	nextUnit := strings.Contains(next, "mg") || strings.Contains(next, "ml")
	currentTablet := strings.Contains(current, "tablet")
	return nextUnit && currentTablet
}

func betterFrequency(next, current string) bool {
	return current == medication.DefaultFrequency && next != "" && next != medication.DefaultFrequency
}

func betterDuration(next, current string) bool {
	return current == medication.DefaultDuration && next != "" && next != medication.DefaultDuration && hasDigit(next)
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
