package authflow

// Record is one in-progress or just-completed authorization attempt,
// keyed by the opaque flow state. The state doubles as the OAuth CSRF
// state parameter and is embedded in the QR-encoded URL.
type Record struct {
	TmpTokenDigest       string `json:"tmp_token_digest"`
	Salt                 string `json:"salt"`
	DeviceGenerateID     string `json:"device_generate_id"`
	Completed            bool   `json:"completed"`
	ProviderRefreshToken string `json:"provider_refresh_token,omitempty"`
}

// CheckResult is the outcome of a status check. Before completion only
// Completed is set; after the atomic claim it carries the new device
// identity and the first-party token pair.
type CheckResult struct {
	Completed    bool   `json:"completed"`
	DeviceID     string `json:"deviceId,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}
