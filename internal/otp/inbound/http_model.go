package inbound

type ChallengeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type ChallengeResponse struct {
	Accepted         bool   `json:"accepted"`
	Email            string `json:"email"`
	Purpose          string `json:"purpose"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// Message customizes the response envelope message.
func (ChallengeResponse) Message() string {
	return "verification code sent"
}

type VerifyRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Email    string `json:"email"`
	Purpose  string `json:"purpose"`
	Token    string `json:"token"`
}

// Message customizes the response envelope message.
func (VerifyResponse) Message() string {
	return "verification successful"
}
