package domain

import "fmt"

// Reaction is a viewer's vote on a subject. The zero value means no vote.
type Reaction string

const (
	ReactionNone     Reaction = ""
	ReactionPositive Reaction = "LIKE"
	ReactionNegative Reaction = "DISLIKE"
)

// ParseReaction accepts the wire values plus the "like"/"dislike" spellings used on the command line.
func ParseReaction(s string) (Reaction, error) {
	switch s {
	case "LIKE", "like", "positive":
		return ReactionPositive, nil
	case "DISLIKE", "dislike", "negative":
		return ReactionNegative, nil
	case "":
		return ReactionNone, nil
	}
	return ReactionNone, fmt.Errorf("unknown reaction %q", s)
}

// ReactionTally is the like/dislike summary of one subject as seen by the
// current viewer.
type ReactionTally struct {
	SubjectID      int64
	PositiveCount  int
	NegativeCount  int
	ViewerReaction Reaction
}

// Toggle returns the tally that results from the viewer requesting r.
// Requesting the reaction the viewer already has clears it; otherwise the
// previous vote is withdrawn and r is applied. Counts never go below zero.
func (t ReactionTally) Toggle(r Reaction) ReactionTally {
	next := t
	if t.ViewerReaction == r {
		next.withdraw(r)
		next.ViewerReaction = ReactionNone
		return next
	}

	next.withdraw(t.ViewerReaction)
	switch r {
	case ReactionPositive:
		next.PositiveCount++
	case ReactionNegative:
		next.NegativeCount++
	}
	next.ViewerReaction = r
	return next
}

func (t *ReactionTally) withdraw(r Reaction) {
	switch r {
	case ReactionPositive:
		t.PositiveCount = max(0, t.PositiveCount-1)
	case ReactionNegative:
		t.NegativeCount = max(0, t.NegativeCount-1)
	}
}
