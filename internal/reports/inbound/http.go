package inbound

import (
	"github.com/oncosight/scangate/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/reports", end.SendReport)
}
