// Package v1 serves the librarian JSON API under /api/v1.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartlibrarian/ai/librarian"
	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/server/auth"
)

// CurrentConversationCookie remembers the conversation a browser is in.
const CurrentConversationCookie = "current_conv_id"

const ownerContextKey = "owner"

type APIV1Service struct {
	Librarian     *librarian.Librarian
	Profile       *profile.Profile
	authenticator *auth.Authenticator
}

func NewAPIV1Service(profile *profile.Profile, lib *librarian.Librarian) *APIV1Service {
	return &APIV1Service{
		Librarian:     lib,
		Profile:       profile,
		authenticator: auth.NewAuthenticator(profile.JWTSecret),
	}
}

type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
}

// routes is the complete, fixed route table of the API.
func (s *APIV1Service) routes() []route {
	return []route{
		{http.MethodPost, "/chat/send", s.SendMessage},
		{http.MethodGet, "/chat/conversations", s.ListConversations},
		{http.MethodPost, "/chat/conversations", s.CreateConversation},
		{http.MethodGet, "/chat/conversations/:id", s.GetConversation},
		{http.MethodDelete, "/chat/conversations/:id", s.DeleteConversation},
		{http.MethodPost, "/chat/transcribe", s.Transcribe},
		{http.MethodPost, "/recommend", s.Recommend},
	}
}

// RegisterRoutes mounts the API on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1", s.identify)
	for _, r := range s.routes() {
		g.Add(r.method, r.path, r.handler)
	}
}

// identify attaches the owner id when the request carries a valid token.
// Operations that need an owner reject anonymous callers themselves.
func (s *APIV1Service) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := s.authenticator.Owner(c.Request())
		if err == nil {
			c.Set(ownerContextKey, owner)
		}
		return next(c)
	}
}

func ownerOf(c echo.Context) string {
	owner, _ := c.Get(ownerContextKey).(string)
	return owner
}
