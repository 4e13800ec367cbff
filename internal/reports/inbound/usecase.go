package inbound

import (
	"context"

	"github.com/oncosight/scangate/internal/reports/usecase"
)

type uc interface {
	SendReport(ctx context.Context, in usecase.SendReportInput) (*usecase.SendReportOutput, error)
}
