package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/api/middleware"
	"github.com/neoncad/engine/internal/api/types"
	"github.com/neoncad/engine/internal/services"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// maxBody caps request bodies; snapshots of large districts stay well
// below it.
const maxBody = 32 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decode reads a JSON body into dst and validates it when it is a struct
// with validate tags.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErr.New(appErr.CodeInvalid, "request body is empty")
		}
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return appErr.Wrap(err, appErr.CodeInvalid, err.Error())
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appErr.Newf(appErr.CodeInvalid, "invalid %s", name)
	}
	return id, nil
}

func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 1 {
		return 0, appErr.Newf(appErr.CodeInvalid, "invalid %s", name)
	}
	return n, nil
}

// viewQuery reads the group filter of BOM requests: ?all=true or ?group=N.
func viewQuery(r *http.Request) (services.View, error) {
	var v services.View
	q := r.URL.Query()
	if s := q.Get("all"); s != "" {
		all, err := strconv.ParseBool(s)
		if err != nil {
			return v, appErr.New(appErr.CodeInvalid, "invalid all")
		}
		v.ShowAll = all
	}
	if s := q.Get("group"); s != "" {
		g, err := strconv.Atoi(s)
		if err != nil || g < 1 {
			return v, appErr.New(appErr.CodeInvalid, "invalid group")
		}
		v.GroupID = g
	}
	return v, nil
}
