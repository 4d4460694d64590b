package models

// Роли пользователей
const (
	RoleCreator = "creator"
	RoleBrand   = "brand"
	RoleAdmin   = "admin"
)

// Пагинация по умолчанию
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ValidRoles список ролей, которые принимаются из токена
var ValidRoles = map[string]struct{}{
	RoleCreator: {},
	RoleBrand:   {},
	RoleAdmin:   {},
}
