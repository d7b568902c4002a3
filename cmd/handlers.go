package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/catalog"
	"github.com/sells-group/interview-checkup/internal/checkup"
	"github.com/sells-group/interview-checkup/internal/company"
	"github.com/sells-group/interview-checkup/internal/config"
	"github.com/sells-group/interview-checkup/internal/ratelimit"
	"github.com/sells-group/interview-checkup/internal/store"
	"github.com/sells-group/interview-checkup/internal/validation"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 64 << 10

// maxBoardCount is the largest board a client may request.
const maxBoardCount = 50

// api serves the HTTP endpoints over an appEnv.
type api struct {
	env     *appEnv
	limiter *ratelimit.Keyed
	now     func() time.Time
}

// buildRouter mounts every endpoint. The submit route is rate limited per
// client IP.
func buildRouter(env *appEnv, sc config.ServerConfig) chi.Router {
	a := &api{
		env:     env,
		limiter: ratelimit.NewKeyed(sc.SubmitRPS, sc.SubmitBurst, 0),
		now:     time.Now,
	}

	origins := sc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/companies", func(r chi.Router) {
			r.Get("/search", a.searchCompanies)
			r.Post("/", a.findOrCreateCompany)
			r.Get("/{id}", a.getCompany)
		})
		r.Route("/flags", func(r chi.Router) {
			r.Get("/", a.listFlags)
			r.Get("/board", a.board)
			r.Post("/{id}/usage", a.recordUsage)
		})
		r.With(a.limiter.Middleware).Post("/submit", a.submit)
		r.Get("/sessions/{id}/submissions", a.sessionSubmissions)
		r.Post("/checkup/score", a.score)
		r.Get("/status", a.status)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) searchCompanies(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", a.env.MatchLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	matches := a.env.Resolver.SearchScored(r.Context(), r.URL.Query().Get("q"), limit)
	if matches == nil {
		matches = []company.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": matches})
}

type companyRequest struct {
	Name         string `json:"name"`
	Website      string `json:"website"`
	Industry     string `json:"industry"`
	Location     string `json:"location"`
	Size         string `json:"company_size"`
	Type         string `json:"company_type"`
	FoundedYear  int    `json:"founded_year"`
	Specialities string `json:"specialities"`
	Locations    string `json:"locations"`
}

func (a *api) findOrCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	co, created, err := a.env.Resolver.FindOrCreateProfile(r.Context(), company.Profile{
		Name:         req.Name,
		Website:      req.Website,
		Industry:     req.Industry,
		Location:     req.Location,
		Size:         req.Size,
		Type:         req.Type,
		FoundedYear:  req.FoundedYear,
		Specialities: req.Specialities,
		Locations:    req.Locations,
	})
	switch {
	case errors.Is(err, company.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "company name cannot be empty")
		return
	case err != nil:
		zap.L().Warn("find or create company failed", zap.String("name", req.Name), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "company store unavailable")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"company": co, "created": created})
}

func (a *api) getCompany(w http.ResponseWriter, r *http.Request) {
	co, ok := a.env.Companies.Lookup(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": co})
}

func (a *api) listFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	sev, cat := q.Get("severity"), q.Get("category")
	if sev != "" && sev != string(catalog.Light) && sev != string(catalog.Medium) {
		writeError(w, http.StatusBadRequest, "severity must be light or medium")
		return
	}

	var flags []catalog.RedFlag
	switch {
	case sev != "":
		flags = a.env.Catalog.BySeverity(ctx, catalog.Severity(sev))
	case cat != "":
		flags = a.env.Catalog.ByCategory(ctx, catalog.Category(cat))
	default:
		flags = a.env.Catalog.All(ctx)
	}
	if sev != "" && cat != "" {
		kept := make([]catalog.RedFlag, 0, len(flags))
		for _, f := range flags {
			if f.Category == catalog.Category(cat) {
				kept = append(kept, f)
			}
		}
		flags = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (a *api) board(w http.ResponseWriter, r *http.Request) {
	count, ok := intParam(r, "count", catalog.BoardSize)
	if !ok || count > maxBoardCount {
		writeError(w, http.StatusBadRequest, "count must be between 0 and 50")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": a.env.Catalog.CuratedBoard(r.Context(), count)})
}

func (a *api) recordUsage(w http.ResponseWriter, r *http.Request) {
	a.env.Catalog.IncrementUsage(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *api) submit(w http.ResponseWriter, r *http.Request) {
	var req checkup.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, checkup.Response{Error: "invalid request body"})
		return
	}

	resp, err := a.env.Checkups.Submit(r.Context(), req, checkup.Meta{
		UserAgent: r.UserAgent(),
		ClientIP:  ratelimit.ClientIP(r),
	})
	switch {
	case errors.Is(err, validation.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, checkup.Response{Error: err.Error()})
	case errors.Is(err, store.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case err != nil:
		zap.L().Error("submit failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, checkup.Response{Error: "failed to submit interview checkup"})
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (a *api) sessionSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.env.Checkups.BySession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		zap.L().Warn("session lookup failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "submission store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

type scoreRequest struct {
	Board       []string `json:"board"`
	MarkedFlags []string `json:"markedFlags"`
	CompanyName string   `json:"companyName"`
	Report      bool     `json:"report"`
}

func (a *api) score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Board) == 0 || len(req.Board) > maxBoardCount {
		writeError(w, http.StatusBadRequest, "board must hold between 1 and 50 flags")
		return
	}

	board := a.env.Catalog.Lookup(r.Context(), req.Board)
	if len(board) != len(req.Board) {
		writeError(w, http.StatusBadRequest, "board contains unknown flags")
		return
	}

	res := checkup.Score(board, req.MarkedFlags)
	body := map[string]any{"result": res}
	if req.Report {
		body["report"] = checkup.Report(res, req.CompanyName, a.now())
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.env.Collector.Collect(r.Context()))
}
