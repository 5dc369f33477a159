package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"equilibrium-api/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/analytics/:symbol",
				Handler: AnalyticsIndexHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/analytics/:symbol/:reportType",
				Handler: AnalyticsReportHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/assets",
				Handler: AssetsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/engine/status",
				Handler: EngineStatusHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/healthz",
				Handler: HealthHandler(serverCtx),
			},
		},
	)
}
