package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propflow/models"
)

func taggedContact(tags ...string) *models.Contact {
	c := &models.Contact{FirstName: "Thandi"}
	for _, tag := range tags {
		c.Tags = append(c.Tags, models.ContactTag{Tag: tag})
	}
	return c
}

func TestMatchesAudience(t *testing.T) {
	t.Run("empty filter matches everyone", func(t *testing.T) {
		ok, err := MatchesAudience(taggedContact(), models.AudienceFilter{})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("any listed tag matches", func(t *testing.T) {
		filter := models.AudienceFilter{Tags: []string{"buyer", "investor"}}

		ok, err := MatchesAudience(taggedContact("investor"), filter)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = MatchesAudience(taggedContact("seller"), filter)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("budget ranges must overlap", func(t *testing.T) {
		filter := models.AudienceFilter{PriceMin: 1_000_000, PriceMax: 2_000_000}

		in := taggedContact()
		in.BudgetMin, in.BudgetMax = 1_500_000, 2_500_000
		ok, err := MatchesAudience(in, filter)
		require.NoError(t, err)
		assert.True(t, ok)

		below := taggedContact()
		below.BudgetMin, below.BudgetMax = 400_000, 800_000
		ok, err = MatchesAudience(below, filter)
		require.NoError(t, err)
		assert.False(t, ok)

		above := taggedContact()
		above.BudgetMin, above.BudgetMax = 3_000_000, 4_000_000
		ok, err = MatchesAudience(above, filter)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no recorded budget passes budget filters", func(t *testing.T) {
		filter := models.AudienceFilter{PriceMin: 1_000_000, PriceMax: 2_000_000}
		ok, err := MatchesAudience(taggedContact(), filter)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("location filters are rejected", func(t *testing.T) {
		_, err := MatchesAudience(taggedContact(), models.AudienceFilter{Locations: []string{"Sandton"}})
		assert.ErrorIs(t, err, ErrLocationFilterUnsupported)
	})
}

func TestTargetContacts(t *testing.T) {
	contacts := &fakeContacts{
		byAgent: map[uint][]models.Contact{
			7: {
				*taggedContact("buyer"),
				*taggedContact("seller"),
			},
		},
	}

	matched, err := TargetContacts(context.Background(), contacts, 7, models.AudienceFilter{Tags: []string{"buyer"}})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.True(t, matched[0].HasTag("buyer"))

	_, err = TargetContacts(context.Background(), contacts, 7, models.AudienceFilter{Locations: []string{"Umhlanga"}})
	assert.ErrorIs(t, err, ErrLocationFilterUnsupported)
}
