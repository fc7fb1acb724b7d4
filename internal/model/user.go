package model

type UserType string

const (
	UserTypeStaff       UserType = "staff"
	UserTypeStakeholder UserType = "stakeholder"
)

// User identifies any chat participant
type User struct {
	ID    string   `json:"id" bson:"user_id"`
	Name  string   `json:"name" bson:"name"`
	Role  string   `json:"role" bson:"role"`
	Email string   `json:"email" bson:"email"`
	Type  UserType `json:"type" bson:"type"`
}

// DisplayName falls back to the id when the name is unknown.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
