// Package router wires the HTTP JSON API: route table, middlewares,
// request validation and the mapping of service errors to status codes.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clipr-link/clipr/internal/auth"
	"github.com/clipr-link/clipr/internal/authenticator"
	"github.com/clipr-link/clipr/internal/gziphttp"
	"github.com/clipr-link/clipr/internal/ipchecker"
	"github.com/clipr-link/clipr/internal/logger"
	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
	"github.com/clipr-link/clipr/internal/validation"
)

type shortenerService interface {
	RegisterUser(ctx context.Context, name, email, password string) (*user.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*user.User, error)
	ShortenURL(ctx context.Context, userID, targetURL string) (*models.ShortURL, error)
	ResolveShortCode(ctx context.Context, shortCode string) (string, error)
	GetUserURLs(ctx context.Context, userID string) ([]models.OwnedURL, error)
	RemoveShortURL(ctx context.Context, shortCode, userID string) error
}

type storage interface {
	Ping(ctx context.Context) error
	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)
}

type sessionAuthenticator interface {
	authenticator.Authenticator
	IssueToken(usr *user.User) (string, error)
}

// Router holds the handlers of the HTTP JSON API.
type Router struct {
	db        storage
	service   shortenerService
	auth      sessionAuthenticator
	ipChecker *ipchecker.IPChecker
	validator *validation.Validator
}

// New builds the chi mux with the full route table and middleware chain.
func New(
	db storage,
	service shortenerService,
	theAuth sessionAuthenticator,
	ipChecker *ipchecker.IPChecker,
) http.Handler {
	theRouter := &Router{
		db:        db,
		service:   service,
		auth:      theAuth,
		ipChecker: ipChecker,
		validator: validation.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gziphttp.UngzipRequest,
		theAuth.DecodeIdentity,
	)

	router.Get(`/`, theRouter.GetRoot)
	router.Get(`/ping`, theRouter.GetPing)

	router.Route(`/users`, func(sub chi.Router) {
		sub.Post(`/signup`, theRouter.PostUsersSignup)
		sub.Post(`/login`, theRouter.PostUsersLogin)
	})

	router.Route(`/urls`, func(sub chi.Router) {
		sub.With(theAuth.RequireIdentity, gziphttp.GzipResponse).Post(`/shorten`, theRouter.PostUrlsShorten)
		sub.With(theAuth.RequireIdentity, gziphttp.GzipResponse).Get(`/`, theRouter.GetUserUrls)
		sub.Get(`/{shortCode}`, theRouter.GetRedirectToTargetURL)
		sub.With(theAuth.RequireIdentity).Delete(`/{shortCode}`, theRouter.DeleteUrl)
	})

	router.Get(`/api/internal/stats`, theRouter.GetApiInternalStats)

	return router
}

// GetRoot reports service liveness.
func (router *Router) GetRoot(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "Server is up and running..."})
}

// GetPing verifies storage connectivity.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.db.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `router.db.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// PostUsersSignup creates a new account.
func (router *Router) PostUsersSignup(response http.ResponseWriter, request *http.Request) {
	var signupRequest models.SignupRequest
	if err := json.NewDecoder(request.Body).Decode(&signupRequest); err != nil {
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: "invalid JSON body"})
		return
	}

	if errTree := router.validator.ValidateStruct(signupRequest); errTree != nil {
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: errTree})
		return
	}

	usr, err := router.service.RegisterUser(
		request.Context(),
		signupRequest.Name,
		signupRequest.Email,
		signupRequest.Password,
	)
	if err != nil {
		if errors.Is(err, models.ErrEmailAlreadyTaken) {
			writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: "User already exists"})
			return
		}
		logger.Log.Debugln("Error calling the `router.service.RegisterUser()`: ", zap.Error(err))
		writeJSON(response, http.StatusInternalServerError, models.MessageResponse{Message: "Failed to signup the user"})
		return
	}

	writeJSON(response, http.StatusCreated, models.SignupResponse{
		UserID:  usr.ID,
		Message: "Signup successful",
	})
}

// PostUsersLogin verifies credentials and issues a session token.
func (router *Router) PostUsersLogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if err := json.NewDecoder(request.Body).Decode(&loginRequest); err != nil {
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: "invalid JSON body"})
		return
	}

	if errTree := router.validator.ValidateStruct(loginRequest); errTree != nil {
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: errTree})
		return
	}

	usr, err := router.service.AuthenticateUser(request.Context(), loginRequest.Email, loginRequest.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			writeJSON(response, http.StatusNotFound, models.MessageResponse{Message: "User doesn't exist"})
		case errors.Is(err, models.ErrIncorrectPassword):
			writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: "Incorrect password"})
		default:
			logger.Log.Debugln("Error calling the `router.service.AuthenticateUser()`: ", zap.Error(err))
			writeJSON(response, http.StatusInternalServerError, models.MessageResponse{Message: "Failed to login the user"})
		}
		return
	}

	sessionToken, err := router.auth.IssueToken(usr)
	if err != nil {
		logger.Log.Debugln("Error calling the `router.auth.IssueToken()`: ", zap.Error(err))
		writeJSON(response, http.StatusInternalServerError, models.MessageResponse{Message: "Failed to login the user"})
		return
	}

	writeJSON(response, http.StatusOK, models.LoginResponse{
		SessionToken: sessionToken,
		Message:      "Login successful",
	})
}

// PostUrlsShorten creates a short URL owned by the authenticated user.
func (router *Router) PostUrlsShorten(response http.ResponseWriter, request *http.Request) {
	identity, ok := auth.IdentityFromContext(request.Context())
	if !ok {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{Message: "user is not authenticated"})
		return
	}

	var shortenRequest models.ShortenRequest
	if err := json.NewDecoder(request.Body).Decode(&shortenRequest); err != nil {
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: "invalid JSON body"})
		return
	}

	if errTree := router.validator.ValidateStruct(shortenRequest); errTree != nil {
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: errTree})
		return
	}

	record, err := router.service.ShortenURL(request.Context(), identity.ID, shortenRequest.TargetURL)
	if err != nil {
		logger.Log.Debugln("Error calling the `router.service.ShortenURL()`: ", zap.Error(err))
		writeJSON(response, http.StatusBadRequest, models.MessageResponse{Message: "Something went wrong while shortening the URL"})
		return
	}

	writeJSON(response, http.StatusCreated, models.ShortenResponse{
		Data:    record,
		Message: "The mentioned URL was successfully shortened",
	})
}

// GetUserUrls lists the short URLs owned by the authenticated user.
func (router *Router) GetUserUrls(response http.ResponseWriter, request *http.Request) {
	identity, ok := auth.IdentityFromContext(request.Context())
	if !ok {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{Message: "user is not authenticated"})
		return
	}

	records, err := router.service.GetUserURLs(request.Context(), identity.ID)
	if err != nil {
		logger.Log.Debugln("Error calling the `router.service.GetUserURLs()`: ", zap.Error(err))
		writeJSON(response, http.StatusInternalServerError, models.MessageResponse{Message: "Failed to fetch the shortcodes"})
		return
	}

	writeJSON(response, http.StatusOK, models.UserURLsResponse{
		Data:    records,
		Message: "All the shortcodes made by the user were successfully fetched",
	})
}

// GetRedirectToTargetURL resolves a short code and redirects to its target.
// No identity is required.
func (router *Router) GetRedirectToTargetURL(response http.ResponseWriter, request *http.Request) {
	shortCode := chi.URLParam(request, "shortCode")

	targetURL, err := router.service.ResolveShortCode(request.Context(), shortCode)
	if err != nil {
		if errors.Is(err, models.ErrURLNotFound) {
			writeJSON(response, http.StatusNotFound, models.MessageResponse{Message: "URL with such shortcode doesn't exist"})
			return
		}
		logger.Log.Debugln("Error calling the `router.service.ResolveShortCode()`: ", zap.Error(err))
		writeJSON(response, http.StatusInternalServerError, models.MessageResponse{Message: "Failed to resolve the shortcode"})
		return
	}

	http.Redirect(response, request, targetURL, http.StatusFound)
}

// DeleteUrl removes a short URL owned by the authenticated user. A code that
// does not exist and a code owned by someone else both yield 403.
func (router *Router) DeleteUrl(response http.ResponseWriter, request *http.Request) {
	identity, ok := auth.IdentityFromContext(request.Context())
	if !ok {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{Message: "user is not authenticated"})
		return
	}

	shortCode := chi.URLParam(request, "shortCode")

	err := router.service.RemoveShortURL(request.Context(), shortCode, identity.ID)
	if err != nil {
		if errors.Is(err, models.ErrNothingWasDeleted) {
			writeJSON(response, http.StatusForbidden, models.MessageResponse{Message: "You're not authorized to delete this shortcode"})
			return
		}
		logger.Log.Debugln("Error calling the `router.service.RemoveShortURL()`: ", zap.Error(err))
		writeJSON(response, http.StatusInternalServerError, models.MessageResponse{Message: "Failed to delete the shortcode"})
		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "The mentioned URL was successfully deleted"})
}

// GetApiInternalStats reports aggregate counters to callers inside the
// trusted subnet.
func (router *Router) GetApiInternalStats(response http.ResponseWriter, request *http.Request) {
	if router.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := router.ipChecker.GetClientIP(request)
	if err != nil || !router.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	urls, err := router.db.GetNumberOfShortenedURLs(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `router.db.GetNumberOfShortenedURLs()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	users, err := router.db.GetNumberOfUsers(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `router.db.GetNumberOfUsers()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, models.StatsResponse{
		URLs:  urls,
		Users: users,
	})
}

func writeJSON(response http.ResponseWriter, status int, body interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(body); err != nil {
		logger.Log.Debugln("Error encoding the response body: ", zap.Error(err))
	}
}
