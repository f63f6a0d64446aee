package device

// Record is the durable relationship between a device identity and the
// provider account. The provider refresh token is held server side only
// and never returned to the client.
type Record struct {
	DeviceGenerateID     string `json:"device_generate_id"`
	ProviderRefreshToken string `json:"provider_refresh_token"`
}

// TokenDigest is the stored form of a first-party token: a salted,
// peppered digest. One slot exists per device and token kind; rotation
// overwrites the slot wholesale.
type TokenDigest struct {
	Digest string `json:"digest"`
	Salt   string `json:"salt"`
}

// TokenPair is a freshly minted first-party access/refresh token pair.
// Raw token values exist only in this response; the server keeps digests.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
