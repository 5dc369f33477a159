package handler

import (
	"net/http"

	"equilibrium-api/internal/logic"
	"equilibrium-api/internal/svc"
)

func AssetsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewAssetsLogic(r.Context(), svcCtx)
		resp, err := l.Assets()
		respond(w, r, resp, err, "assets unavailable")
	}
}
