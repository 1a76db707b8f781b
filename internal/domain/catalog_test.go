package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimit(t *testing.T) {
	tests := []struct {
		name     string
		tier     Tier
		resource ResourceType
		want     int64
	}{
		{"free photo", TierFree, ResourcePhoto, 2},
		{"free video is locked", TierFree, ResourceVideo, 0},
		{"free audio is locked", TierFree, ResourceAudio, 0},
		{"free text", TierFree, ResourceText, 5},
		{"pro photo", TierPro, ResourcePhoto, 30},
		{"pro video", TierPro, ResourceVideo, 10},
		{"business text", TierBusiness, ResourceText, 1000},
		{"unknown tier falls back to free", Tier("enterprise"), ResourcePhoto, 2},
		{"property has no period allowance", TierBusiness, ResourceProperty, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Limit(tt.tier, tt.resource))
		})
	}
}

func TestPropertyCapacity(t *testing.T) {
	assert.Equal(t, int64(1), PropertyCapacity(TierFree))
	assert.Equal(t, int64(10), PropertyCapacity(TierPro))
	assert.Equal(t, int64(100), PropertyCapacity(TierBusiness))
	assert.Equal(t, int64(1), PropertyCapacity(Tier("bogus")))
}

func TestTierDisplayName(t *testing.T) {
	assert.Equal(t, "Free", TierFree.DisplayName())
	assert.Equal(t, "Business", TierBusiness.DisplayName())
}

func TestParseResourceType(t *testing.T) {
	for _, valid := range []string{"photo", "video", "audio", "text", "property"} {
		r, err := ParseResourceType(valid)
		assert.NoError(t, err)
		assert.True(t, r.IsValid())
	}

	_, err := ParseResourceType("hologram")
	assert.Error(t, err)
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestResourceTypeIsMetered(t *testing.T) {
	assert.True(t, ResourcePhoto.IsMetered())
	assert.True(t, ResourceText.IsMetered())
	assert.False(t, ResourceProperty.IsMetered())
	assert.False(t, ResourceType("bogus").IsMetered())
}
