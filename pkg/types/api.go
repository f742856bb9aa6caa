package types

// UpdateTargetRequest is the body of a submit-edit call.
type UpdateTargetRequest struct {
	Content string `json:"content" form:"content"`
}

// AdminLoginRequest is the body of an admin login call.
type AdminLoginRequest struct {
	Password string `json:"password" form:"password"`
}

// AdminLoginResponse carries the session token issued on successful login.
type AdminLoginResponse struct {
	Token string `json:"token"`
}

// LockStateResponse reports the system lock flag.
type LockStateResponse struct {
	Locked bool `json:"locked"`
}
