package models

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// RelayConfig carries what the services need to authenticate against
// the custody relay's identity provider.
type RelayConfig struct {
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string
}

type M2MTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// MintRequest is the relay payload for minting or burning stubs and
// points on behalf of an attendee.
type MintRequest struct {
	Contract string `json:"contract"`
	Account  string `json:"account"`
	StubID   uint64 `json:"stub_id,omitempty"`
	Amount   string `json:"amount"`
}

// TransferRequest is the relay payload for moving ERC-20 tokens into
// or out of custody.
type TransferRequest struct {
	Token  string `json:"token"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}
