// Package access описывает, какой вариант видео может получить вызывающий.
package access

import "github.com/ignatzorin/creator-settlement/internal/pkg/apperror"

const (
	RoleCreator = "creator"
	RoleBrand   = "brand"
	RoleAdmin   = "admin"
)

// Variant - вариант ассета.
type Variant string

const (
	VariantWatermarked Variant = "watermarked"
	VariantOriginal    Variant = "original"
)

// Level - уровень доступа, который видит клиент.
type Level string

const (
	LevelOwnerPreview Level = "owner_preview"
	LevelBrandPreview Level = "brand_preview"
	LevelFull         Level = "full"
)

// Relation - отношение вызывающего к работе.
type Relation int

const (
	RelationNone Relation = iota
	// RelationCreator - автор работы.
	RelationCreator
	// RelationCampaignOwner - бренд, владеющий кампанией.
	RelationCampaignOwner
)

// Decision - результат проверки доступа.
type Decision struct {
	Variant Variant
	Level   Level
}

// Decide применяет матрицу доступа к видео. Чистая функция без побочных эффектов.
func Decide(role string, rel Relation, watermarkRemoved bool) (Decision, error) {
	switch {
	case role == RoleAdmin:
		return Decision{Variant: VariantOriginal, Level: LevelFull}, nil
	case role == RoleCreator && rel == RelationCreator:
		return Decision{Variant: VariantWatermarked, Level: LevelOwnerPreview}, nil
	case role == RoleBrand && rel == RelationCampaignOwner:
		if watermarkRemoved {
			return Decision{Variant: VariantOriginal, Level: LevelFull}, nil
		}
		return Decision{Variant: VariantWatermarked, Level: LevelBrandPreview}, nil
	}
	return Decision{}, apperror.Forbidden("нет доступа к видео")
}
