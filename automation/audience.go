package automation

import (
	"context"

	"propflow/models"
	"propflow/repository"
)

// MatchesAudience reports whether a contact falls inside a sequence's
// audience filter. Tag filters match when the contact carries at least one
// of the listed tags. Budget filters match when the contact's budget range
// overlaps the filter range; contacts with no budget recorded pass budget
// filters. Location filters are rejected outright.
func MatchesAudience(contact *models.Contact, filter models.AudienceFilter) (bool, error) {
	if len(filter.Locations) > 0 {
		return false, ErrLocationFilterUnsupported
	}

	if len(filter.Tags) > 0 {
		matched := false
		for _, tag := range filter.Tags {
			if contact.HasTag(tag) {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	if contact.BudgetMin > 0 || contact.BudgetMax > 0 {
		if filter.PriceMin > 0 && contact.BudgetMax > 0 && contact.BudgetMax < filter.PriceMin {
			return false, nil
		}
		if filter.PriceMax > 0 && contact.BudgetMin > filter.PriceMax {
			return false, nil
		}
	}

	return true, nil
}

// TargetContacts returns the agent's reachable contacts that match the
// sequence's audience filter.
func TargetContacts(ctx context.Context, contacts repository.ContactRepository, agentID uint, filter models.AudienceFilter) ([]models.Contact, error) {
	if len(filter.Locations) > 0 {
		return nil, ErrLocationFilterUnsupported
	}

	candidates, err := contacts.ReachableByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	matched := make([]models.Contact, 0, len(candidates))
	for i := range candidates {
		ok, err := MatchesAudience(&candidates[i], filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, candidates[i])
		}
	}
	return matched, nil
}
