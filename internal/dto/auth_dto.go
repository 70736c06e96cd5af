package dto

// RequestOTPRequest asks for a passcode to be sent to an email address or phone number.
type RequestOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	Name       string `json:"name" validate:"omitempty,max=255"`
	Type       string `json:"type" validate:"required,oneof=email phone"`
}

// RequestOTPResponse acknowledges dispatch. Debug carries the code only in development.
type RequestOTPResponse struct {
	Message string `json:"message"`
	Debug   string `json:"debug,omitempty"`
}

// VerifyOTPRequest submits a received passcode.
type VerifyOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	OTP        string `json:"otp" validate:"required,len=6,numeric"`
	Type       string `json:"type" validate:"required,oneof=email phone"`
}

// StudentAuthResponse is returned after a student signs in.
type StudentAuthResponse struct {
	User             StudentResponse `json:"user"`
	ProfileCompleted bool            `json:"profileCompleted"`
}

// CheckEmailRequest asks whether an account exists for an email address.
type CheckEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// CheckEmailResponse reports account existence and whether it belongs to an admin.
type CheckEmailResponse struct {
	Exists  bool `json:"exists"`
	IsAdmin bool `json:"isAdmin"`
}

// EmailLoginRequest signs in with an email address and password.
type EmailLoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// EmailRegisterRequest creates a student account with a password.
type EmailRegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// EmailLoginResponse describes which principal was signed in.
type EmailLoginResponse struct {
	Role             string           `json:"role"`
	User             *StudentResponse `json:"user,omitempty"`
	Admin            *AdminResponse   `json:"admin,omitempty"`
	ProfileCompleted bool             `json:"profileCompleted"`
	RedirectTo       string           `json:"redirectTo"`
}

// AdminLoginRequest signs an admin in by username or email.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}
