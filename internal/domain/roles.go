package domain

type Role string

const (
	// User is the default role for accounts created through a federated login.
	RoleUser Role = "user"
	// Setter can publish problems for a gym.
	RoleSetter Role = "setter"
	// Admin can manage gyms, rankings and other accounts.
	RoleAdmin Role = "admin"
)

func IsValidRole(r string) bool {
	return r == string(RoleUser) || r == string(RoleSetter) || r == string(RoleAdmin)
}

// RoleRank: bigger => higher privilege
func RoleRank(r string) int {
	switch r {
	case string(RoleUser):
		return 1
	case string(RoleSetter):
		return 2
	case string(RoleAdmin):
		return 3
	default:
		return 0
	}
}
