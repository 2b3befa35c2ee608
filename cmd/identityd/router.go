package main

import (
	"encoding/json"
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 64 << 10

func newRouter(engine *goIdentity.Engine, trustProxy bool) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientContext(trustProxy))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteData(w, map[string]string{"status": "ok", "environment": string(engine.Environment())})
	})
	r.Handle("/metrics", prometheus.NewPrometheusExporter(engine).Handler())

	h := &handlers{engine: engine}
	limit := func(policy string) func(http.Handler) http.Handler {
		return middleware.RateLimit(engine, policy)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(limit(goIdentity.PolicyAuthLookup)).Post("/lookup", h.lookup)
		r.With(limit(goIdentity.PolicyVeryStrict)).Post("/otp", h.sendOTP)
		r.With(limit(goIdentity.PolicyLogin)).Post("/login", h.login)
		r.With(limit(goIdentity.PolicyAccountCreation)).Post("/signup", h.signup)
		r.With(limit(goIdentity.PolicyStrict)).Post("/refresh", h.refresh)
		r.With(limit(goIdentity.PolicyStandard)).Post("/logout", h.logout)
		r.With(limit(goIdentity.PolicyStrict)).Get("/confirm", h.confirmEmail)
		r.With(limit(goIdentity.PolicyStrict)).Get("/devices/reject", h.rejectDevice)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine))
		r.Use(limit(goIdentity.PolicyStandard))
		r.Get("/me", h.me)
	})

	return r
}

type handlers struct {
	engine *goIdentity.Engine
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value  string `json:"value"`
		Region string `json:"region"`
	}
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Lookup(r.Context(), body.Value, body.Region)
	respond(w, res, err)
}

func (h *handlers) sendOTP(w http.ResponseWriter, r *http.Request) {
	var body goIdentity.OTPRequest
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.SendOTP(r.Context(), body)
	respond(w, res, err)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var body goIdentity.LoginRequest
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Login(r.Context(), body)
	respond(w, res, err)
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var body goIdentity.SignupRequest
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Signup(r.Context(), body)
	respond(w, res, err)
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Refresh(r.Context(), body.RefreshToken)
	respond(w, res, err)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.engine.Logout(r.Context(), body.RefreshToken)
	respond(w, res, err)
}

func (h *handlers) confirmEmail(w http.ResponseWriter, r *http.Request) {
	identityID, err := h.engine.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	respond(w, map[string]string{"identityId": identityID}, err)
}

func (h *handlers) rejectDevice(w http.ResponseWriter, r *http.Request) {
	identityID, err := h.engine.RejectDevice(r.Context(), r.URL.Query().Get("token"))
	respond(w, map[string]string{"identityId": identityID}, err)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	subject, _ := goIdentity.SubjectIDFromContext(r.Context())
	middleware.WriteData(w, map[string]string{"identityId": subject})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, goIdentity.ErrValidation)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteData(w, data)
}
