package ai

import "unicode/utf8"

const (
	FlagVelocity  = "High Velocity (Multiple submissions < 5m)"
	FlagDuplicate = "Duplicate Content (Identical description exists)"
	FlagShort     = "Low Info (Description too short)"
	FlagRepeated  = "Possible Spam (Repetitive characters)"
)

// TrustInput is what the store knows about a submission's author.
type TrustInput struct {
	Description string
	// RecentSubmissions counts the author's grievances in the last five minutes.
	RecentSubmissions int
	Duplicate         bool
}

// TrustScore is advisory only and never blocks a submission.
func TrustScore(in TrustInput) (float64, []string) {
	score := 1.0
	flags := make([]string, 0)

	if in.RecentSubmissions >= 2 {
		flags = append(flags, FlagVelocity)
		score -= 0.15 * float64(in.RecentSubmissions)
	}
	if in.Duplicate {
		flags = append(flags, FlagDuplicate)
		score -= 0.4
	}
	if utf8.RuneCountInString(in.Description) < 15 {
		flags = append(flags, FlagShort)
		score -= 0.1
	} else if distinctRunes(in.Description) < 5 {
		flags = append(flags, FlagRepeated)
		score -= 0.5
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, flags
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
