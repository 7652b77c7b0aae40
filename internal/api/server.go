package api

import (
	"net/http"
	"time"

	"keepit/internal/auth"
	"keepit/internal/middleware"
	"keepit/internal/models"
	"keepit/internal/notes"
	"keepit/internal/notify"
	"keepit/internal/quota"
	"keepit/internal/sharing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the services the handlers are built on.
type Deps struct {
	Auth     *auth.Service
	Notes    *notes.Service
	Sharing  *sharing.Service
	Webhooks *notify.Registry
	Gate     *quota.Gate
	Limiter  quota.Limiter
	MCP      http.Handler
	Log      zerolog.Logger
	Version  string
}

type Handlers struct {
	auth     *auth.Service
	notes    *notes.Service
	sharing  *sharing.Service
	webhooks *notify.Registry
	gate     *quota.Gate
	log      zerolog.Logger
	version  string
	now      func() time.Time
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		auth:     d.Auth,
		notes:    d.Notes,
		sharing:  d.Sharing,
		webhooks: d.Webhooks,
		gate:     d.Gate,
		log:      d.Log.With().Str("component", "api").Logger(),
		version:  d.Version,
		now:      time.Now,
	}
}

// NewRouter wires every route. Public routes sit on the root router;
// everything else goes through authentication first.
func NewRouter(d Deps) http.Handler {
	h := NewHandlers(d)
	r := mux.NewRouter()
	r.Use(middleware.Logging(d.Log))
	limit := func(fn http.Handler) http.Handler { return fn }
	if d.Limiter != nil {
		limit = middleware.RateLimit(d.Limiter, d.Log)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, h.log, errRouteNotFound)
	})

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/api/auth/register", limit(http.HandlerFunc(h.Register))).Methods("POST")
	r.Handle("/api/auth/login", limit(http.HandlerFunc(h.Login))).Methods("POST")
	r.Handle("/api/invitations/{token:[0-9a-f]{64}}", limit(http.HandlerFunc(h.GetInvitationByToken))).Methods("GET")

	// Authenticated callers are limited per user, so the limiter runs
	// after Auth here.
	p := r.PathPrefix("/").Subrouter()
	p.Use(middleware.Auth(d.Auth), limit)

	need := func(perm models.APIKeyPermission, fn http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(perm)(fn)
	}
	session := func(fn http.HandlerFunc) http.Handler {
		return middleware.SessionOnly(fn)
	}

	p.Handle("/api/auth/me", session(h.Me)).Methods("GET")

	p.Handle("/api/notes", need(models.APIReadNotes, h.ListNotes)).Methods("GET")
	p.Handle("/api/notes", need(models.APICreateNotes, h.CreateNote)).Methods("POST")
	p.Handle("/api/notes/reorder", need(models.APIUpdateNotes, h.ReorderNotes)).Methods("PUT")
	p.Handle("/api/notes/checkbox/{checkboxId:[0-9]+}", need(models.APIUpdateNotes, h.UpdateCheckbox)).Methods("PATCH")
	p.Handle("/api/notes/{id:[0-9]+}", need(models.APIReadNotes, h.GetNote)).Methods("GET")
	p.Handle("/api/notes/{id:[0-9]+}", need(models.APIUpdateNotes, h.UpdateNote)).Methods("PATCH")
	p.Handle("/api/notes/{id:[0-9]+}", need(models.APIDeleteNotes, h.DeleteNote)).Methods("DELETE")
	p.Handle("/api/notes/{id:[0-9]+}/pin", need(models.APIUpdateNotes, h.PinNote)).Methods("PATCH")

	p.Handle("/api/templates", need(models.APIReadTemplates, h.ListTemplates)).Methods("GET")
	p.Handle("/api/templates", need(models.APICreateTemplates, h.CreateTemplate)).Methods("POST")
	p.Handle("/api/templates/{id:[0-9]+}", need(models.APIReadTemplates, h.GetTemplate)).Methods("GET")
	p.Handle("/api/templates/{id:[0-9]+}", need(models.APIUpdateTemplates, h.UpdateTemplate)).Methods("PATCH")
	p.Handle("/api/templates/{id:[0-9]+}", need(models.APIDeleteTemplates, h.DeleteTemplate)).Methods("DELETE")
	p.Handle("/api/templates/{id:[0-9]+}/use", need(models.APIUseTemplates, h.UseTemplate)).Methods("POST")
	p.Handle("/api/templates/convert/from-note/{id:[0-9]+}", session(h.ConvertToTemplate)).Methods("POST")
	p.Handle("/api/templates/convert/to-note/{id:[0-9]+}", session(h.ConvertToNote)).Methods("POST")

	p.Handle("/api/invitations/notes/{id:[0-9]+}", need(models.APIShareNotes, h.CreateInvitation)).Methods("POST")
	p.Handle("/api/invitations/notes/{id:[0-9]+}", need(models.APIShareNotes, h.NoteInvitations)).Methods("GET")
	p.Handle("/api/invitations/pending", session(h.PendingInvitations)).Methods("GET")
	p.Handle("/api/invitations/sent", need(models.APIShareNotes, h.SentInvitations)).Methods("GET")
	p.Handle("/api/invitations/shared-notes", need(models.APIReadNotes, h.SharedNotes)).Methods("GET")
	p.Handle("/api/invitations/stats", need(models.APIShareNotes, h.InvitationStats)).Methods("GET")
	p.Handle("/api/invitations/access/{id:[0-9]+}", need(models.APIShareNotes, h.NoteAccess)).Methods("GET")
	p.Handle("/api/invitations/access/{id:[0-9]+}/{userId:[0-9]+}", need(models.APIShareNotes, h.RemoveAccess)).Methods("DELETE")
	p.Handle("/api/invitations/leave/{id:[0-9]+}", session(h.LeaveNote)).Methods("DELETE")
	p.Handle("/api/invitations/{invitationId:[0-9]+}/revoke", need(models.APIShareNotes, h.RevokeInvitation)).Methods("DELETE")
	p.Handle("/api/invitations/{token}/accept", session(h.AcceptInvitation)).Methods("POST")
	p.Handle("/api/invitations/{token}/decline", session(h.DeclineInvitation)).Methods("POST")

	p.Handle("/api/api-keys", session(h.ListAPIKeys)).Methods("GET")
	p.Handle("/api/api-keys", session(h.CreateAPIKey)).Methods("POST")
	p.Handle("/api/api-keys/permissions", session(h.APIKeyPermissions)).Methods("GET")
	p.Handle("/api/api-keys/{id:[0-9]+}", session(h.DeleteAPIKey)).Methods("DELETE")

	p.Handle("/api/webhooks", session(h.ListWebhooks)).Methods("GET")
	p.Handle("/api/webhooks", session(h.CreateWebhook)).Methods("POST")
	p.Handle("/api/webhooks/{id:[0-9]+}", session(h.DeleteWebhook)).Methods("DELETE")

	if d.MCP != nil {
		p.Handle("/mcp", d.MCP)
	}
	return r
}
