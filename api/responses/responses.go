package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Success: true, Data: data})
}

// WriteNoContent acknowledges a mutation that has nothing to return.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps err onto its HTTP status and the error envelope. Untyped
// errors become INTERNAL_ERROR and only the public message is exposed.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	logFailure(ctx, logg, meta, typed.Code(), err)
	writeJSON(w, meta.HTTPStatus, errorEnvelope(meta, typed))
}

func errorEnvelope(meta pkgerrors.Metadata, typed *pkgerrors.Error) types.ErrorEnvelope {
	env := types.ErrorEnvelope{
		Message: meta.PublicMessage,
		Code:    string(typed.Code()),
	}
	if msg := typed.Message(); meta.ExposeMessage && msg != "" {
		env.Message = msg
	}
	if meta.DetailsAllowed {
		env.Details = typed.Details()
	}
	return env
}

// logFailure records server faults at error level with driver diagnostics.
// Client mistakes only warrant a warning.
func logFailure(ctx context.Context, logg *logger.Logger, meta pkgerrors.Metadata, code pkgerrors.Code, err error) {
	if logg == nil {
		return
	}
	if meta.HTTPStatus < http.StatusInternalServerError {
		logg.Warn(logg.WithField(ctx, "error_code", string(code)), "request.rejected")
		return
	}
	logg.Error(logg.WithFields(ctx, pkgerrors.Diagnose(err).Fields()), "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure means the client went away.
	_ = json.NewEncoder(w).Encode(payload)
}
