package inbound

import (
	"github.com/oncosight/scangate/internal/otp/usecase"
	"github.com/oncosight/scangate/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// RequestChallenge issues a one-time passcode and emails it to the identity.
func (h *HTTPEndpoint) RequestChallenge(r *router.Request) (any, error) {
	var req ChallengeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.RequestChallenge(r.Context(), usecase.RequestChallengeInput{
		Email:   req.Email,
		Purpose: req.Purpose,
	})
	if err != nil {
		return nil, err
	}

	return ChallengeResponse{
		Accepted:         true,
		Email:            out.Identity,
		Purpose:          out.Purpose.String(),
		ExpiresInSeconds: int64(out.TTL.Seconds()),
	}, nil
}

// VerifyChallenge checks a submitted passcode and returns a session token.
func (h *HTTPEndpoint) VerifyChallenge(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.VerifyChallenge(r.Context(), usecase.VerifyChallengeInput{
		Email:   req.Email,
		Purpose: req.Purpose,
		Code:    req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyResponse{
		Verified: true,
		Email:    out.Identity,
		Purpose:  out.Purpose.String(),
		Token:    out.Token,
	}, nil
}
