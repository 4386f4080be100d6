package pawmate

import "sort"

// ResolveOwnership derives the conversation owner from the full message
// list: the sender of the earliest message owns the conversation, and only
// the owner may leave a review. An empty conversation has no owner.
//
// The result depends only on timestamps, never on input order; messages
// with identical timestamps are tie-broken by ascending identifier so the
// outcome is stable for any permutation of the same set.
func ResolveOwnership(messages []Message, currentUserID string) Ownership {
	if len(messages) == 0 {
		return Ownership{}
	}

	sorted := append([]Message{}, messages...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	ownerID := sorted[0].SenderID
	return Ownership{
		OwnerID:   ownerID,
		CanReview: ownerID == currentUserID,
	}
}
