package inbound

import (
	"context"

	"github.com/oncosight/scangate/internal/otp/usecase"
)

type uc interface {
	RequestChallenge(ctx context.Context, in usecase.RequestChallengeInput) (*usecase.RequestChallengeOutput, error)
	VerifyChallenge(ctx context.Context, in usecase.VerifyChallengeInput) (*usecase.VerifyChallengeOutput, error)
}
