// Package handler implements the HTTP handlers for the tagstore API.
// All handlers are methods on Server. Methods are split into concern-specific
// files (tag.go, stats.go, auth.go, health.go) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opentagger/tagstore/internal/domain"
)

// TagServicer defines the business operations the tag handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TagServicer interface {
	Create(ctx context.Context, identity string, tag domain.Tag) (domain.Tag, error)
	Update(ctx context.Context, identity string, tag domain.Tag) (domain.Tag, error)
	Delete(ctx context.Context, identity, product, owner, key string, version int) error
	Get(ctx context.Context, identity, product, owner, key string) (domain.Tag, error)
	GetHierarchy(ctx context.Context, identity, product, owner, base string) ([]domain.Tag, error)
	ListByProduct(ctx context.Context, identity, product, owner string, keys []string) ([]domain.Tag, error)
	ListVersions(ctx context.Context, identity, product, owner, key string) ([]domain.Tag, error)
	ListProducts(ctx context.Context, identity string, f domain.TagFilter) ([]domain.ProductEntry, error)
	ProductStats(ctx context.Context, identity string, f domain.TagFilter) ([]domain.ProductStats, error)
	KeyStats(ctx context.Context, identity, owner, q string) ([]domain.KeyStats, error)
	ValueCounts(ctx context.Context, identity, owner, key, q string, limit int) ([]domain.ValueCount, error)
}

// AuthServicer defines the token-issuance operations the auth handlers use.
type AuthServicer interface {
	Login(ctx context.Context, username, password string) (string, error)
	LoginByCookie(ctx context.Context, session string) (string, error)
}

// Pinger reports whether the storage backend is reachable.
// Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies shared by all HTTP handlers.
type Server struct {
	tags TagServicer
	auth AuthServicer
	db   Pinger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(tags TagServicer, auth AuthServicer, db Pinger) *Server {
	return &Server{tags: tags, auth: auth, db: db}
}

// Routes returns the router for the full API surface.
// Mount it at the root of the application router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.Hello)
	r.Get("/ping", s.Ping)
	r.Get("/openapi.yaml", s.OpenAPI)

	r.Post("/auth", s.Login)
	r.Post("/auth_by_cookie", s.LoginByCookie)

	r.Post("/product", s.CreateTag)
	r.Put("/product", s.UpdateTag)
	r.Get("/product/{product}", s.ListProductTags)
	r.Get("/product/{product}/{key}", s.GetTag)
	r.Get("/product/{product}/{key}/versions", s.ListTagVersions)
	r.Delete("/product/{product}/{key}", s.DeleteTag)

	r.Get("/products", s.ListProducts)
	r.Get("/products/stats", s.ProductStats)
	r.Get("/keys", s.KeyStats)
	r.Get("/values/{key}", s.ValueCounts)

	return r
}

// urlKey returns the {key} path parameter. Tag keys may contain colons and a
// trailing '*', both of which chi passes through verbatim.
func urlKey(r *http.Request) string {
	return chi.URLParam(r, "key")
}
