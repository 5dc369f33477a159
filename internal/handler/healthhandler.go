package handler

import (
	"net/http"

	"equilibrium-api/internal/logic"
	"equilibrium-api/internal/svc"
)

func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewHealthLogic(r.Context(), svcCtx)
		resp, err := l.Health()
		respond(w, r, resp, err, "health unavailable")
	}
}
