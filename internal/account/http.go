// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/ctxutil"
	"github.com/taibuivan/unpuff/internal/platform/middleware"
	requestutil "github.com/taibuivan/unpuff/internal/platform/request"
	"github.com/taibuivan/unpuff/internal/platform/respond"
	"github.com/taibuivan/unpuff/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the identity endpoints used by the Unpuff client.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the auth routes.
//
// # Endpoints
//   - POST /signup                     : Creates an account and signs it in.
//   - POST /login                      : Authenticates and returns a token.
//   - GET  /session                    : Current account of the bearer token.
//   - POST /logout                     : Revokes the bearer token.
//   - POST /verify                     : Confirms an email address.
//   - GET  /oauth/{provider}/start     : Redirects to the provider.
//   - GET  /oauth/{provider}/callback  : Provider return; redirects to the client.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/signup", handler.signup)
	router.Post("/login", handler.login)
	router.Post("/verify", handler.verify)
	router.Get("/oauth/{provider}/start", handler.oauthStart)
	router.Get("/oauth/{provider}/callback", handler.oauthCallback)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/session", handler.session)
		r.Post("/logout", handler.logout)
	})

	return router
}

// # Payloads

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// sessionResponse is the account view the client builds its session from.
type sessionResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toSessionResponse(account *Account, token string) sessionResponse {
	return sessionResponse{
		ID:        account.ID,
		Username:  account.Username,
		Token:     token,
		CreatedAt: account.CreatedAt,
	}
}

// # Handlers

/*
Signup handles the creation of a new account.

POST /api/auth/signup

Request:
  - Body: signupRequest (username, password, email?, displayName?)

Response:
  - 201: sessionResponse with token
  - 400: VALIDATION_ERROR or WEAK_CREDENTIAL
  - 403: UNCONFIRMED_ACCOUNT (confirmation link sent)
  - 409: ACCOUNT_EXISTS
*/
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {
	var input signupRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	result, err := handler.accountService.Signup(request.Context(), SignupInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, toSessionResponse(result.Account, result.Token))
}

/*
Login authenticates an account.

POST /api/auth/login

Response:
  - 200: sessionResponse with token
  - 401: INVALID_CREDENTIALS
  - 403: UNCONFIRMED_ACCOUNT
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username)
	validator.Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.accountService.Login(request.Context(), LoginInput{
		Login:    input.Username,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, toSessionResponse(result.Account, result.Token))
}

/*
Session returns the account behind the bearer token.

GET /api/auth/session?userId=<id>

Description: userId is optional; when present it must match the token, so a
client holding a stale record for another account is told its session is gone.

Response:
  - 200: sessionResponse without token
  - 401: token missing, revoked or for another account
  - 404: account deleted
*/
func (handler *Handler) session(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if userID := request.URL.Query().Get("userId"); userID != "" && userID != claims.UserID {
		respond.Error(writer, request, apperr.Unauthorized("Session does not belong to this account"))
		return
	}

	account, err := handler.accountService.Session(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, toSessionResponse(account, ""))
}

/*
Logout revokes the current session.

POST /api/auth/logout

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.Logout(request.Context(), claims.ID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
Verify confirms an email address.

POST /api/auth/verify

Response:
  - 200: sessionResponse without token
  - 400: VALIDATION_ERROR for unknown or expired tokens
*/
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	var input verifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	account, err := handler.accountService.VerifyEmail(request.Context(), input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, toSessionResponse(account, ""))
}

/*
OAuthStart redirects the browser to the provider's consent page.

GET /api/auth/oauth/{provider}/start?redirect_to=<client url>
*/
func (handler *Handler) oauthStart(writer http.ResponseWriter, request *http.Request) {
	target, err := handler.accountService.StartOAuth(
		request.Context(),
		requestutil.Param(request, "provider"),
		request.URL.Query().Get(FieldRedirectTo),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, target, http.StatusFound)
}

/*
OAuthCallback completes the provider flow and returns the browser to the client.

GET /api/auth/oauth/{provider}/callback?code=...&state=...

Description: Failures after the state was recognised are reported to the
client in the redirect fragment; only unknown states get a JSON error.
*/
func (handler *Handler) oauthCallback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	target, err := handler.accountService.CompleteOAuth(
		request.Context(),
		requestutil.Param(request, "provider"),
		query.Get("code"),
		query.Get("state"),
	)
	if err != nil {
		ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "account_oauth_failed")
		if target == "" {
			respond.Error(writer, request, err)
			return
		}
	}

	writer.Header().Set(constants.HeaderCacheControl, constants.CacheControlNoStore)
	http.Redirect(writer, request, target, http.StatusFound)
}
