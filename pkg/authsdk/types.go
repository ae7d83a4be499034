package authsdk

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_credentials"`
	ErrorDescription string `json:"error_description" example:"invalid credentials"`
}

// TwoFactorRequiredResponse is sent with 409 when a code is needed.
type TwoFactorRequiredResponse struct {
	Error            string `json:"error" example:"two_factor_required"`
	ErrorDescription string `json:"error_description"`
	VerifyURL        string `json:"verify_url" example:"/v1/login"`
}

// LoginResponse is returned once both factors are satisfied.
type LoginResponse struct {
	Status      string           `json:"status" example:"authenticated"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type" example:"Bearer"`
	ExpiresIn   int              `json:"expires_in" example:"43200"`
	User        UserInfoResponse `json:"user"`
}

// UserInfoResponse describes the logged-in user.
type UserInfoResponse struct {
	Sub              string   `json:"sub" example:"01HZX3J9K2M4N6P8Q0R2S4T6V8"`
	Username         string   `json:"username" example:"nate"`
	PreferredName    string   `json:"preferred_name,omitempty" example:"Nate"`
	AMR              []string `json:"amr,omitempty" example:"pwd,otp"`
	TwoFactorEnabled bool     `json:"two_factor_enabled"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime" example:"1h2m3s"`
	Version string        `json:"version" example:"0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists dependency status for /readyz.
type HealthChecks struct {
	Database string `json:"database" example:"ok"`
	Sessions string `json:"sessions" example:"ok"`
}

// TOTPEnrollResponse carries a freshly issued, not yet active secret.
type TOTPEnrollResponse struct {
	Secret          string `json:"secret" example:"FDJBDYSSZMLJBOUG"`
	ProvisioningURI string `json:"provisioning_uri" example:"otpauth://totp/BarTab:nate?secret=FDJBDYSSZMLJBOUG&issuer=BarTab"`
	QRCode          string `json:"qr_code" example:"data:image/png;base64,iVBORw0KGgo..."`
	Issuer          string `json:"issuer" example:"BarTab"`
	Account         string `json:"account" example:"nate"`
}

// TOTPCodeRequest confirms an enrollment or disables the second factor.
type TOTPCodeRequest struct {
	Code string `json:"code" example:"123456"`
}
