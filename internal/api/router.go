package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/blob"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/catalog"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/config"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/constants"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/db"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/decks"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/token"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/users"
)

// Deps are the collaborators the HTTP layer dispatches to. Blobs, BlobRepo
// and Pictures may be nil, which disables media serving and picture uploads.
type Deps struct {
	Config   *config.Config
	DB       *db.DB
	Codec    *token.Codec
	Users    *users.Directory
	Decks    *decks.Store
	Catalog  *catalog.Catalog
	Blobs    *blob.Service
	BlobRepo *db.BlobRepository
	Pictures PictureUploader
}

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(deps Deps) (*Server, error) {
	cfg := deps.Config

	resolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configuring client ip resolver: %w", err)
	}

	authHandler := NewAuthHandler(deps.Users, deps.Codec)
	profileHandler := NewProfileHandler(deps.Users, deps.Pictures, cfg.Storage.MaxUploadBytes)
	deckHandler := NewDeckHandler(deps.Decks)
	cardHandler := NewCardHandler(deps.Catalog)
	healthHandler := NewHealthHandler(deps.DB, deps.Catalog.Len)

	authMiddleware := NewAuthMiddleware(deps.Codec)
	authLimit := rateLimit(cfg.Server.AuthRateLimit, time.Minute, resolver)
	apiLimit := rateLimit(cfg.Server.APIRateLimit, time.Minute, resolver)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	if deps.Blobs != nil && deps.BlobRepo != nil {
		mediaHandler := NewMediaHandler(deps.BlobRepo, deps.Blobs)
		r.With(apiLimit).Get("/media/{blobID}", mediaHandler.GetBlob)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(cfg.Server.MaxBodyBytes))

		r.With(authLimit).Post("/login", authHandler.Login)
		r.With(authLimit).Post("/register", authHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Use(apiLimit)

			r.Get("/greet-me", authHandler.GreetMe)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Patch("/", profileHandler.Update)
				r.Put("/password", profileHandler.ChangePassword)
				if deps.Pictures != nil {
					r.Post("/picture", profileHandler.UploadPicture)
				}
			})

			r.Route("/decks", func(r chi.Router) {
				r.Get("/", deckHandler.List)
				r.Post("/", deckHandler.Create)
				r.Get("/recent", deckHandler.ListRecent)
				r.Get("/favorites", deckHandler.ListFavorites)

				r.Route("/{deckID}", func(r chi.Router) {
					r.Get("/", deckHandler.Get)
					r.Patch("/", deckHandler.Update)
					r.Delete("/", deckHandler.Delete)
					r.Put("/favorite", deckHandler.SetFavorite)
					r.Post("/cards", deckHandler.AddCard)
					r.Patch("/cards/{cardID}", deckHandler.UpdateCardCount)
					r.Delete("/cards/{cardID}", deckHandler.RemoveCard)
				})
			})

			r.Get("/cards", cardHandler.Search)
			r.Get("/cards/{cardID}", cardHandler.Get)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		notFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, constants.ErrCodeInvalidRequest, "Method not allowed")
	})

	return &Server{router: r, config: cfg}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware admits browser requests from the allow-list. With an empty
// list only loopback origins are admitted. Requests without an Origin header
// pass through untouched.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if !originAllowed(allowedOrigins, origin) {
				writeError(w, http.StatusForbidden, constants.ErrCodeInvalidRequest, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowedOrigins []string, origin string) bool {
	if len(allowedOrigins) > 0 {
		return slices.Contains(allowedOrigins, origin)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
