// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/unpuff/internal/platform/middleware"
	requestutil "github.com/taibuivan/unpuff/internal/platform/request"
	"github.com/taibuivan/unpuff/internal/platform/respond"
	"github.com/taibuivan/unpuff/internal/platform/validate"
)

// Handler serves the remote profile table of the signed-in account.
type Handler struct {
	profileService *Service
}

// NewHandler constructs a [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{profileService: service}
}

// Routes returns the profile routes. Every route requires authentication.
//
// # Endpoints
//   - GET    / : Current profile, 404 when none exists.
//   - PUT    / : Create or replace the profile.
//   - DELETE / : Remove the profile.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.get)
	router.Put("/", handler.put)
	router.Delete("/", handler.delete)

	return router
}

func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	p, err := handler.profileService.Get(request.Context(), accountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, p.Clone())
}

/*
Put replaces the profile of the signed-in account.

PUT /api/profile

Request:
  - Body: {identity, triggers, dailyBaseline, dailyGoal}, every field required

Response:
  - 200: The stored profile
  - 400: VALIDATION_ERROR listing every failing field
*/
func (handler *Handler) put(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var doc record
	if err := requestutil.DecodeJSON(request, &doc); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	p, err := doc.toProfile()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	saved, err := handler.profileService.Save(request.Context(), accountID, *p)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, saved)
}

func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.profileService.Delete(request.Context(), accountID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
