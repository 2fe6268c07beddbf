package model

import (
	"strings"
	"time"
)

// Role discriminates the two account variants.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleProfessor
}

// Account is a registered user. Student-only fields are DepartmentNumber and
// Section; professor-only fields are ProfessorNumber and Subject.
type Account struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	FullName   string `json:"fullName"`
	FamilyName string `json:"familyName,omitempty"`
	Email      string `json:"email"`
	Photo      string `json:"photo,omitempty"`

	DepartmentNumber string  `json:"departmentNumber,omitempty"`
	Section          Section `json:"section,omitempty"`

	ProfessorNumber string `json:"professorNumber,omitempty"`
	Subject         string `json:"subject,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (a Account) IsStudent() bool   { return a.Role == RoleStudent }
func (a Account) IsProfessor() bool { return a.Role == RoleProfessor }

// DisplayName is "fullName familyName", or just fullName when there is no family name.
func (a Account) DisplayName() string {
	return strings.TrimSpace(a.FullName + " " + a.FamilyName)
}

// Session is the value stored at the session key.
type Session struct {
	AccountID string `json:"accountId"`
	Role      Role   `json:"role"`
}
