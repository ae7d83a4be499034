package domain

// TOTPEnrollment is handed to the user when a new secret is issued.
type TOTPEnrollment struct {
	Secret          string // Base32 encoded secret for manual entry
	ProvisioningURI string // otpauth:// URI
	QRCode          string // data:image/png;base64 rendering of ProvisioningURI
	Issuer          string
	Account         string
}
