package domain

// Role type to distinguish between the two kinds of marketplace users.
type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)
