package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"equilibrium-api/internal/logic"
	"equilibrium-api/internal/svc"
	"equilibrium-api/internal/types"
)

func AnalyticsReportHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AnalyticsReportRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewAnalyticsReportLogic(r.Context(), svcCtx)
		resp, err := l.AnalyticsReport(&req)
		respond(w, r, resp, err, "report unavailable")
	}
}
