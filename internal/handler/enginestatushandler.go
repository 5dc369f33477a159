package handler

import (
	"net/http"

	"equilibrium-api/internal/logic"
	"equilibrium-api/internal/svc"
)

func EngineStatusHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewEngineStatusLogic(r.Context(), svcCtx)
		resp, err := l.EngineStatus()
		respond(w, r, resp, err, "status unavailable")
	}
}
