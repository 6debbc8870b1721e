package auth

// LoginInput carries login credentials
type LoginInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// ChangePasswordInput carries a password change request
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

// UpdateProfileInput carries the editable profile fields. Empty fields
// are omitted so the backend treats the request as a partial update.
type UpdateProfileInput struct {
	ChineseName string `json:"chinese_name,omitempty"`
	Department  string `json:"department,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}
