package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/controller/server"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/repository/memory"
	"github.com/xiashuijun/elasticvc/pkg/usecase"
)

func newTestServer() *server.Server {
	return server.New(usecase.New(memory.New()))
}

func TestHealth(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)
}

func TestCreateAndFindBranch(t *testing.T) {
	srv := newTestServer()

	createReq := httptest.NewRequest(http.MethodPost, "/branches/", bytes.NewReader([]byte(`{"path":"MAIN"}`)))
	createRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(createRec, createReq)
	gt.V(t, createRec.Code).Equal(http.StatusCreated)

	findReq := httptest.NewRequest(http.MethodGet, "/branches/MAIN", nil)
	findRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(findRec, findReq)
	gt.V(t, findRec.Code).Equal(http.StatusOK)

	var branch model.Branch
	gt.NoError(t, json.Unmarshal(findRec.Body.Bytes(), &branch))
	gt.V(t, branch.Path).Equal(types.RootPath)
}

func TestFindBranchNotFound(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/branches/MAIN", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusNotFound)
}

// Routes under /branches/* must keep the chi wildcard as the last token of
// the pattern, so the action a request performs on the captured path
// (children, recursive create, unlock) is selected by a query parameter
// rather than a trailing path segment. This exercises the recursive-create
// and children actions (unlock is covered by TestUnlockRequiresAdminToken)
// through the router chi.NewRouter() builds in server.New, which would
// panic at construction time if a wildcard were placed mid-pattern.
func TestBranchActionsViaQueryParameter(t *testing.T) {
	srv := newTestServer()

	createReq := httptest.NewRequest(http.MethodPost, "/branches/", bytes.NewReader([]byte(`{"path":"MAIN"}`)))
	createRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(createRec, createReq)
	gt.V(t, createRec.Code).Equal(http.StatusCreated)

	recursiveReq := httptest.NewRequest(http.MethodPost, "/branches/MAIN/a/b?action=recursive", nil)
	recursiveRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(recursiveRec, recursiveReq)
	gt.V(t, recursiveRec.Code).Equal(http.StatusCreated)

	childrenReq := httptest.NewRequest(http.MethodGet, "/branches/MAIN?action=children", nil)
	childrenRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(childrenRec, childrenReq)
	gt.V(t, childrenRec.Code).Equal(http.StatusOK)

	var children []*model.Branch
	gt.NoError(t, json.Unmarshal(childrenRec.Body.Bytes(), &children))
	gt.V(t, len(children)).Equal(2) // MAIN/a, MAIN/a/b

	directReq := httptest.NewRequest(http.MethodGet, "/branches/MAIN?action=children/direct", nil)
	directRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(directRec, directReq)
	gt.V(t, directRec.Code).Equal(http.StatusOK)

	var direct []*model.Branch
	gt.NoError(t, json.Unmarshal(directRec.Body.Bytes(), &direct))
	gt.V(t, len(direct)).Equal(1) // MAIN/a only

	unknownReq := httptest.NewRequest(http.MethodGet, "/branches/MAIN?action=bogus", nil)
	unknownRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(unknownRec, unknownReq)
	gt.V(t, unknownRec.Code).Equal(http.StatusBadRequest)
}

func TestUnlockRequiresAdminToken(t *testing.T) {
	srv := server.New(usecase.New(memory.New()), server.WithAdminToken(types.AdminToken("secret")))

	createReq := httptest.NewRequest(http.MethodPost, "/branches/", bytes.NewReader([]byte(`{"path":"MAIN"}`)))
	createRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(createRec, createReq)
	gt.V(t, createRec.Code).Equal(http.StatusCreated)

	deniedReq := httptest.NewRequest(http.MethodPost, "/branches/MAIN?action=unlock", nil)
	deniedRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(deniedRec, deniedReq)
	gt.V(t, deniedRec.Code).Equal(http.StatusForbidden)

	allowedReq := httptest.NewRequest(http.MethodPost, "/branches/MAIN?action=unlock", nil)
	allowedReq.Header.Set("X-Admin-Token", "secret")
	allowedRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(allowedRec, allowedReq)
	gt.V(t, allowedRec.Code).Equal(http.StatusOK)
}

func TestCommitOpenCompleteFlow(t *testing.T) {
	srv := newTestServer()

	createReq := httptest.NewRequest(http.MethodPost, "/branches/", bytes.NewReader([]byte(`{"path":"MAIN"}`)))
	createRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(createRec, createReq)
	gt.V(t, createRec.Code).Equal(http.StatusCreated)

	openReq := httptest.NewRequest(http.MethodPost, "/commits/", bytes.NewReader([]byte(`{"path":"MAIN"}`)))
	openRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(openRec, openReq)
	gt.V(t, openRec.Code).Equal(http.StatusCreated)

	var opened struct {
		Handle types.CommitHandle `json:"handle"`
	}
	gt.NoError(t, json.Unmarshal(openRec.Body.Bytes(), &opened))
	gt.True(t, opened.Handle != "")

	completeReq := httptest.NewRequest(http.MethodPost, "/commits/"+string(opened.Handle)+"/complete", nil)
	completeRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(completeRec, completeReq)
	gt.V(t, completeRec.Code).Equal(http.StatusOK)

	// The handle is consumed exactly once: completing it again must fail
	// because the registry no longer holds it.
	replayReq := httptest.NewRequest(http.MethodPost, "/commits/"+string(opened.Handle)+"/complete", nil)
	replayRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(replayRec, replayReq)
	gt.V(t, replayRec.Code).Equal(http.StatusNotFound)
}

func TestDeleteAllRequiresAdminToken(t *testing.T) {
	srv := server.New(usecase.New(memory.New()), server.WithAdminToken(types.AdminToken("secret")))

	req := httptest.NewRequest(http.MethodDelete, "/admin/all", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusForbidden)
}
