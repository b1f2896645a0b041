package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sitebuilder/internal/document"
	"sitebuilder/internal/injector"
)

// ── Blocks ─────────────────────────────────────────────────

// GET /api/blocks
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.blocks.ListBlocks()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// GET /api/blocks/{id}
func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	b, err := s.blocks.GetBlock(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type putBlockRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// PUT /api/blocks/{id}
func (s *Server) handlePutBlock(w http.ResponseWriter, r *http.Request) {
	var req putBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	data, err := document.ParseSerialized(req.Data)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if len(data) == 0 {
		badRequest(w, "data is required")
		return
	}
	b, err := s.blocks.SaveBlock(r.Context(), chi.URLParam(r, "id"), req.Name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DELETE /api/blocks/{id}
func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := s.blocks.DeleteBlock(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Pages ──────────────────────────────────────────────────

// GET /api/pages/{id}/document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.editor.Document(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type injectRequest struct {
	BlockID  string `json:"blockId"`
	ParentID string `json:"parentId"`
	Index    *int   `json:"index"`
}

type injectResponse struct {
	State   string   `json:"state"`
	RootID  string   `json:"rootId,omitempty"`
	Dropped []string `json:"dropped,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func newInjectResponse(res injector.Result) injectResponse {
	out := injectResponse{State: res.State.String(), RootID: res.RootID}
	for _, d := range res.Dropped {
		out.Dropped = append(out.Dropped, d.Error())
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// POST /api/pages/{id}/inject
//
// A failed injection is still a 200: the placeholder was placed and
// cleaned up, and the body carries the failure.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BlockID == "" {
		badRequest(w, "blockId is required")
		return
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	res, err := s.editor.InjectBlock(r.Context(), chi.URLParam(r, "id"), req.BlockID, req.ParentID, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInjectResponse(res))
}

// ── Previews ───────────────────────────────────────────────

// GET /preview/{id}/static
func (s *Server) handlePreviewStatic(w http.ResponseWriter, r *http.Request) {
	page, err := s.sites.GetPage(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.publish.Render(r.Context(), page).Static))
}

// GET /preview/{id}/shell
func (s *Server) handlePreviewShell(w http.ResponseWriter, r *http.Request) {
	page, err := s.sites.GetPage(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(s.publish.Render(r.Context(), page).Shell))
}
