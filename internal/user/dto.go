package user

import "time"

// CreateUserDTO is the signup payload. Password is accepted here and never
// serialized back out.
type CreateUserDTO struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UpdateUserDTO carries a partial update; nil fields are left untouched.
// Staff and superuser flags are only honored for staff callers.
type UpdateUserDTO struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsStaff     *bool   `json:"is_staff,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// CreatedResponse is the create payload: external identifier and login
// identifier only.
type CreatedResponse struct {
	UUID  string `json:"uuid"`
	Email string `json:"email"`
}

// Response is the read shape of a user resource.
type Response struct {
	UUID       string    `json:"uuid"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	IsActive   bool      `json:"is_active"`
	IsStaff    bool      `json:"is_staff"`
	DateJoined time.Time `json:"date_joined"`
}

func ToResponse(u *User) Response {
	return Response{
		UUID:       u.UUID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsActive:   u.IsActive,
		IsStaff:    u.IsStaff,
		DateJoined: u.DateJoined,
	}
}

func ToResponses(users []*User) []Response {
	out := make([]Response, 0, len(users))
	for _, u := range users {
		out = append(out, ToResponse(u))
	}
	return out
}
