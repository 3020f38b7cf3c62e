package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/utils/errutil"
	"github.com/xiashuijun/elasticvc/pkg/utils/logging"
)

type Server struct {
	mux *chi.Mux
}

func safeWrite(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	// nosemgrep: go.lang.security.audit.xss.no-direct-write-to-responsewriter.no-direct-write-to-responsewriter
	// Why: The response data is not from user input
	if _, err := w.Write(body); err != nil {
		logging.Default().Error("fail to write response", slog.Any("error", err))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		safeWrite(w, http.StatusInternalServerError, []byte(`{"error":"failed to encode response"}`))
		return
	}
	safeWrite(w, code, body)
}

type errResponse struct {
	Error string `json:"error"`
}

func writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	errutil.HandleError(ctx, msg, err)
	writeJSON(w, statusForError(err), errResponse{Error: err.Error()})
}

// statusForError maps a domain error kind (spec.md §7) to an HTTP status.
// Any error not wrapping one of these sentinels is treated as a 500.
func statusForError(err error) int {
	switch {
	case isKind(err, types.ErrNotFound):
		return http.StatusNotFound
	case isKind(err, types.ErrAlreadyExists):
		return http.StatusConflict
	case isKind(err, types.ErrInvalidArgument):
		return http.StatusBadRequest
	case isKind(err, types.ErrConflictLocked):
		return http.StatusConflict
	case isKind(err, types.ErrListenerAborted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func isKind(err, sentinel error) bool {
	for e := err; e != nil; {
		if e == sentinel {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// AdminAuthorizer is consulted before unlock and deleteAll run. Returning
// an error refuses the request.
type AdminAuthorizer interface {
	Authorize(ctx context.Context, r *http.Request) error
}

type config struct {
	adminToken types.AdminToken
	authorizer AdminAuthorizer
}

type Option func(*config)

// WithAdminToken requires the X-Admin-Token header to match token on
// unlock and deleteAll requests. An empty token disables the check.
func WithAdminToken(token types.AdminToken) Option {
	return func(cfg *config) {
		cfg.adminToken = token
	}
}

// WithAdminAuthorizer additionally runs authorizer (an OPA policy check,
// see pkg/cli/config.Policy) before unlock and deleteAll requests.
func WithAdminAuthorizer(authorizer AdminAuthorizer) Option {
	return func(cfg *config) {
		cfg.authorizer = authorizer
	}
}

// commitRegistry backs the commit-handle HTTP flow (SPEC_FULL.md §4):
// openCommit/openRebaseCommit/openPromotionCommit return a handle alongside
// the model.Commit, and complete/rollback take only the handle and exchange
// it back for the stored commit.
type commitRegistry struct {
	mu      sync.Mutex
	commits map[types.CommitHandle]*model.Commit
}

func newCommitRegistry() *commitRegistry {
	return &commitRegistry{commits: make(map[types.CommitHandle]*model.Commit)}
}

func (r *commitRegistry) put(commit *model.Commit) types.CommitHandle {
	handle := types.CommitHandle(uuid.NewString())
	r.mu.Lock()
	r.commits[handle] = commit
	r.mu.Unlock()
	return handle
}

func (r *commitRegistry) take(handle types.CommitHandle) (*model.Commit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	commit, ok := r.commits[handle]
	if ok {
		delete(r.commits, handle)
	}
	return commit, ok
}

func New(uc interfaces.UseCase, options ...Option) *Server {
	cfg := &config{}
	for _, opt := range options {
		opt(cfg)
	}

	registry := newCommitRegistry()

	r := chi.NewRouter()
	r.Use(preProcess)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		safeWrite(w, http.StatusOK, []byte(`{"status":"ok"}`))
	})

	r.Route("/branches", func(r chi.Router) {
		r.Get("/", handleFindAll(uc))
		r.Post("/", handleCreate(uc))
		// chi requires a wildcard to be the last token of a route pattern, and
		// a branch path itself is slash-delimited, so it must be matched by
		// "/*" rather than a named {param}. The action these verbs perform on
		// that path (plain lookup, children, recursive create, unlock) is
		// therefore selected by an "action" query parameter instead of by
		// additional path segments after the wildcard.
		r.Get("/*", handleBranchGet(uc))
		r.Post("/*", handleBranchPost(uc, cfg))
	})

	r.Route("/commits", func(r chi.Router) {
		r.Post("/", handleOpenCommit(uc, registry))
		r.Post("/{handle}/complete", handleComplete(uc, registry))
		r.Post("/{handle}/rollback", handleRollback(uc, registry))
	})

	r.Delete("/admin/all", adminOnly(cfg, handleDeleteAll(uc)))

	return &Server{mux: r}
}

func adminOnly(cfg *config, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.adminToken != "" && types.AdminToken(r.Header.Get("X-Admin-Token")) != cfg.adminToken {
			writeJSON(w, http.StatusForbidden, errResponse{Error: "invalid admin token"})
			return
		}
		if cfg.authorizer != nil {
			if err := cfg.authorizer.Authorize(r.Context(), r); err != nil {
				writeError(r.Context(), w, "admin policy denied request", err)
				return
			}
		}
		next(w, r)
	}
}

func handleFindAll(uc interfaces.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branches, err := uc.FindAll(r.Context())
		if err != nil {
			writeError(r.Context(), w, "failed to find all branches", err)
			return
		}
		writeJSON(w, http.StatusOK, branches)
	}
}

type createRequest struct {
	Path types.BranchPath `json:"path"`
}

func handleCreate(uc interfaces.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(r.Context(), w, "failed to decode request", goerr.Wrap(types.ErrInvalidArgument, "invalid request body", goerr.V("cause", err.Error())))
			return
		}
		branch, err := uc.Create(r.Context(), req.Path)
		if err != nil {
			writeError(r.Context(), w, "failed to create branch", err)
			return
		}
		writeJSON(w, http.StatusCreated, branch)
	}
}

// handleBranchGet dispatches GET /branches/* by its "action" query parameter:
// "" (plain lookup, optionally at a given "at" timestamp), "children", or
// "children/direct".
func handleBranchGet(uc interfaces.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := branchPathParam(r)

		switch r.URL.Query().Get("action") {
		case "children":
			branches, err := uc.FindChildren(r.Context(), path)
			if err != nil {
				writeError(r.Context(), w, "failed to find children", err)
				return
			}
			writeJSON(w, http.StatusOK, branches)

		case "children/direct":
			branches, err := uc.FindDirectChildren(r.Context(), path)
			if err != nil {
				writeError(r.Context(), w, "failed to find direct children", err)
				return
			}
			writeJSON(w, http.StatusOK, branches)

		case "":
			if at := r.URL.Query().Get("at"); at != "" {
				t, err := time.Parse(time.RFC3339Nano, at)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid at timestamp"})
					return
				}
				branch, err := uc.FindAtTimepointOrThrow(r.Context(), path, t)
				if err != nil {
					writeError(r.Context(), w, "failed to find branch at timepoint", err)
					return
				}
				writeJSON(w, http.StatusOK, branch)
				return
			}

			branch, err := uc.FindBranchOrThrow(r.Context(), path)
			if err != nil {
				writeError(r.Context(), w, "failed to find branch", err)
				return
			}
			writeJSON(w, http.StatusOK, branch)

		default:
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "unknown action"})
		}
	}
}

// handleBranchPost dispatches POST /branches/* by its "action" query
// parameter: "recursive" (recursive create) or "unlock" (admin-gated).
func handleBranchPost(uc interfaces.UseCase, cfg *config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := branchPathParam(r)

		switch r.URL.Query().Get("action") {
		case "recursive":
			branch, err := uc.RecursiveCreate(r.Context(), path)
			if err != nil {
				writeError(r.Context(), w, "failed to recursively create branch", err)
				return
			}
			writeJSON(w, http.StatusCreated, branch)

		case "unlock":
			adminOnly(cfg, func(w http.ResponseWriter, r *http.Request) {
				if err := uc.Unlock(r.Context(), path); err != nil {
					writeError(r.Context(), w, "failed to unlock branch", err)
					return
				}
				safeWrite(w, http.StatusOK, []byte(`{"status":"ok"}`))
			})(w, r)

		default:
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "unknown action"})
		}
	}
}

func handleDeleteAll(uc interfaces.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.DeleteAll(r.Context()); err != nil {
			writeError(r.Context(), w, "failed to delete all branches", err)
			return
		}
		safeWrite(w, http.StatusOK, []byte(`{"status":"ok"}`))
	}
}

type openCommitRequest struct {
	Path       types.BranchPath `json:"path"`
	Type       model.CommitType `json:"type"`
	SourcePath types.BranchPath `json:"sourcePath,omitempty"`
}

type openCommitResponse struct {
	Handle types.CommitHandle `json:"handle"`
	Commit *model.Commit      `json:"commit"`
}

func handleOpenCommit(uc interfaces.UseCase, registry *commitRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openCommitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(r.Context(), w, "failed to decode request", goerr.Wrap(types.ErrInvalidArgument, "invalid request body", goerr.V("cause", err.Error())))
			return
		}

		var (
			commit *model.Commit
			err    error
		)
		switch req.Type {
		case model.CommitRebase:
			commit, err = uc.OpenRebaseCommit(r.Context(), req.Path)
		case model.CommitPromotion:
			commit, err = uc.OpenPromotionCommit(r.Context(), req.Path, req.SourcePath)
		default:
			commit, err = uc.OpenCommit(r.Context(), req.Path)
		}
		if err != nil {
			writeError(r.Context(), w, "failed to open commit", err)
			return
		}

		handle := registry.put(commit)
		writeJSON(w, http.StatusCreated, openCommitResponse{Handle: handle, Commit: commit})
	}
}

func handleComplete(uc interfaces.UseCase, registry *commitRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := types.CommitHandle(chi.URLParam(r, "handle"))
		commit, ok := registry.take(handle)
		if !ok {
			writeJSON(w, http.StatusNotFound, errResponse{Error: "unknown commit handle"})
			return
		}
		if err := uc.Complete(r.Context(), commit); err != nil {
			writeError(r.Context(), w, "failed to complete commit", err)
			return
		}
		safeWrite(w, http.StatusOK, []byte(`{"status":"ok"}`))
	}
}

func handleRollback(uc interfaces.UseCase, registry *commitRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := types.CommitHandle(chi.URLParam(r, "handle"))
		commit, ok := registry.take(handle)
		if !ok {
			writeJSON(w, http.StatusNotFound, errResponse{Error: "unknown commit handle"})
			return
		}
		if err := uc.Rollback(r.Context(), commit); err != nil {
			writeError(r.Context(), w, "failed to rollback commit", err)
			return
		}
		safeWrite(w, http.StatusOK, []byte(`{"status":"ok"}`))
	}
}

func branchPathParam(r *http.Request) types.BranchPath {
	p := chi.URLParam(r, "*")
	if p == "" {
		return types.RootPath
	}
	return types.BranchPath(p)
}

func (x *Server) Mux() *chi.Mux {
	return x.mux
}
