package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

func TestDecide_Matrix(t *testing.T) {
	tests := []struct {
		name             string
		role             string
		rel              Relation
		watermarkRemoved bool
		want             Variant
	}{
		{"creator owner before approval", RoleCreator, RelationCreator, false, VariantWatermarked},
		{"creator owner after approval", RoleCreator, RelationCreator, true, VariantWatermarked},
		{"brand owner before approval", RoleBrand, RelationCampaignOwner, false, VariantWatermarked},
		{"brand owner after approval", RoleBrand, RelationCampaignOwner, true, VariantOriginal},
		{"admin before approval", RoleAdmin, RelationNone, false, VariantOriginal},
		{"admin after approval", RoleAdmin, RelationNone, true, VariantOriginal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.role, tt.rel, tt.watermarkRemoved)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Variant)
		})
	}
}

func TestDecide_Denied(t *testing.T) {
	tests := []struct {
		name string
		role string
		rel  Relation
	}{
		{"foreign creator", RoleCreator, RelationNone},
		{"foreign brand", RoleBrand, RelationNone},
		{"brand with creator relation", RoleBrand, RelationCreator},
		{"creator with campaign relation", RoleCreator, RelationCampaignOwner},
		{"unknown role", "guest", RelationNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, removed := range []bool{false, true} {
				_, err := Decide(tt.role, tt.rel, removed)
				assert.True(t, apperror.IsForbidden(err))
			}
		})
	}
}

func TestDecide_Levels(t *testing.T) {
	d, _ := Decide(RoleBrand, RelationCampaignOwner, false)
	assert.Equal(t, LevelBrandPreview, d.Level)

	d, _ = Decide(RoleCreator, RelationCreator, false)
	assert.Equal(t, LevelOwnerPreview, d.Level)

	d, _ = Decide(RoleAdmin, RelationNone, false)
	assert.Equal(t, LevelFull, d.Level)
}
