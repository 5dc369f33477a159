package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"equilibrium-api/internal/persistence/reports"
	"equilibrium-api/internal/types"
)

// respond writes the logic result. Missing cache entries map to 404 with the
// given message so clients can tell "not published yet" from a hard failure.
func respond(w http.ResponseWriter, r *http.Request, resp any, err error, unavailable string) {
	switch {
	case err == nil:
		httpx.OkJsonCtx(r.Context(), w, resp)
	case errors.Is(err, reports.ErrNotFound):
		httpx.WriteJsonCtx(r.Context(), w, http.StatusNotFound, types.ErrorResponse{Error: unavailable})
	default:
		httpx.WriteJsonCtx(r.Context(), w, http.StatusInternalServerError, types.ErrorResponse{Error: "internal error"})
	}
}
