package inbound

import (
	"github.com/oncosight/scangate/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/otp/challenge", end.RequestChallenge)
	r.POST("/api/v1/otp/verify", end.VerifyChallenge)
}
