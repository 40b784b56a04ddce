package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// SubmitResponse is returned after an order is recorded Open.
type SubmitResponse struct {
	OrderHash string `json:"orderHash"`
	State     string `json:"state"`
}

// OrderStateResponse is the registry lookup for one hash.
type OrderStateResponse struct {
	OrderHash string `json:"orderHash"`
	State     string `json:"state"`
}

// MatchResponse reports a settled batch.
type MatchResponse struct {
	Filled      []string `json:"filled"`      // order hashes, offer side before request side per pair
	Attestation string   `json:"attestation"` // BLS attestation over the settlement digest (hex)
}

// StatusResponse describes node-level exchange state.
type StatusResponse struct {
	Halted            bool   `json:"halted"`
	FeeRecipient      string `json:"feeRecipient"`
	TrackedOrders     int    `json:"trackedOrders"`
	AttestationPubkey string `json:"attestationPubkey,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest is a client subscription request
// Example: {"op": "subscribe", "channels": ["orders"]}
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // Channel names
}
