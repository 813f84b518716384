package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"gitlab.com/ellera/guildhall/internal/db"
	"gitlab.com/ellera/guildhall/internal/graph"
	"gitlab.com/ellera/guildhall/internal/models"
	"gitlab.com/ellera/guildhall/internal/storage"
)

type Routes struct {
	db        *db.SharedDB
	envConfig *models.EnvConfig
	images    storage.ImageStore
	verifier  *tokenVerifier
}

func NewRouter(envConfig *models.EnvConfig, sdb *db.SharedDB, logger zerolog.Logger, images storage.ImageStore) (chi.Router, error) {
	verifier, err := newTokenVerifier(envConfig.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	routes := &Routes{
		db:        sdb,
		envConfig: envConfig,
		images:    images,
		verifier:  verifier,
	}

	schema := graphql.MustParseSchema(graph.Schema, graph.NewResolver(sdb))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: envConfig.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			"apollo-require-preflight",
			"x-apollo-operation-name",
		},
		AllowCredentials: true,
	}).Handler)
	r.Use(routes.VerifyToken)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/graphql", &relay.Handler{Schema: schema})
	r.Post("/images", routes.AppHandler(routes.PostImage))
	r.Get("/images/*", routes.GetImage)

	return r, nil
}

type AppError struct {
	Message string
	Code    int
	Cause   error
}

// AppHandler adapts handlers returning *AppError: the error is logged
// with the request id and rendered as a JSON body with a stable shape.
func (routes *Routes) AppHandler(handler func(w http.ResponseWriter, r *http.Request) *AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler(w, r)
		if err == nil {
			return
		}
		if err.Code == 0 {
			err.Code = http.StatusInternalServerError
		}
		if err.Message == "" {
			err.Message = "Internal server error"
		}
		hlog.FromRequest(r).
			Error().
			Str("request_id", middleware.GetReqID(r.Context())).
			Err(err.Cause).
			Msg(err.Message)
		renderJSON(w, err.Code, map[string]string{"error": err.Message})
	}
}

func renderJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
