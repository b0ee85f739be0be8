package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"simplepage/internal/errs"
	"simplepage/internal/pagemanager"
	"simplepage/internal/recorder"
	"simplepage/internal/replay"
)

// replayRequest is the body of POST /api/replay.
type replayRequest struct {
	Actions []recorder.Action `json:"actions"`
	Options replay.Options    `json:"options"`
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.List())
}

type createPageRequest struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Description   string `json:"description"`
	Timeout       int64  `json:"timeout"`
	RecordActions *bool  `json:"recordActions"`
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.URL == "" {
		writeError(w, errs.New(errs.BadRequest, "url is required"))
		return
	}
	record := true
	if req.RecordActions != nil {
		record = *req.RecordActions
	}

	info, err := s.mgr.Create(r.Context(), pagemanager.CreateOptions{
		Name: req.Name, URL: req.URL, Description: req.Description,
		Timeout: req.Timeout, RecordActions: record,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.mgr.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleClosePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.Close(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type navigateRequest struct {
	URL         string `json:"url"`
	Timeout     int64  `json:"timeout"`
	Description string `json:"description"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req navigateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	url, err := s.mgr.Navigate(r.Context(), id, req.URL, req.Timeout, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

type historyRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleNavigateBack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req historyRequest
	_ = decodeJSON(r, &req)
	url, err := s.mgr.NavigateBack(r.Context(), id, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *Server) handleNavigateForward(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req historyRequest
	_ = decodeJSON(r, &req)
	url, err := s.mgr.NavigateForward(r.Context(), id, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

type reloadRequest struct {
	Timeout     int64  `json:"timeout"`
	Description string `json:"description"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reloadRequest
	_ = decodeJSON(r, &req)
	url, err := s.mgr.Reload(r.Context(), id, req.Timeout, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	selector := r.URL.Query().Get("selector")
	structure, htmlPath, actionsPath, consoleLogPath, err := s.mgr.Structure(r.Context(), id, selector)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"structure":      structure,
		"htmlPath":       htmlPath,
		"actionsPath":    actionsPath,
		"consoleLogPath": consoleLogPath,
	})
}

type actRequest struct {
	XPath       string   `json:"xpath"`
	EncodedID   string   `json:"encodedId"`
	Method      string   `json:"method"`
	Args        []string `json:"args"`
	Description string   `json:"description"`
}

func (s *Server) handleActXPath(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req actRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.mgr.ActXPath(r.Context(), id, req.XPath, req.Method, req.Args, req.Description); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleActID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req actRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.mgr.ActID(r.Context(), id, req.EncodedID, req.Method, req.Args, req.Description); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type waitRequest struct {
	Timeout     int64  `json:"timeout"`
	Description string `json:"description"`
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req waitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.mgr.Wait(r.Context(), id, req.Timeout, req.Description); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type conditionRequest struct {
	Pattern     string `json:"pattern"`
	Flags       string `json:"flags"`
	Description string `json:"description"`
}

func (s *Server) handleCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req conditionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	matched, err := s.mgr.Condition(r.Context(), id, req.Pattern, req.Flags, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"matched": matched})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	png, err := s.mgr.Screenshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleXPathFor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	encodedID := chi.URLParam(r, "encodedId")
	xpath, err := s.mgr.XPathFor(id, encodedID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"xpath": xpath})
}

type selectorRequest struct {
	Selector    string   `json:"selector"`
	PostScripts []string `json:"postScripts"`
}

func (s *Server) handleGetListHTML(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req selectorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	listFile, count, results, err := s.mgr.GetListHTML(r.Context(), id, req.Selector, "", req.PostScripts)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"success": true, "listFile": listFile, "count": count}
	if results != nil {
		resp["postScriptResults"] = results
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetListHTMLByParent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req selectorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	listFile, count, results, err := s.mgr.GetListHTMLByParent(r.Context(), id, req.Selector, "", req.PostScripts)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"success": true, "listFile": listFile, "count": count}
	if results != nil {
		resp["postScriptResults"] = results
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetElementHTML(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req selectorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	elementFile, results, err := s.mgr.GetElementHTML(r.Context(), id, req.Selector, "", req.PostScripts)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"success": true, "elementFile": elementFile}
	if results != nil {
		resp["postScriptResults"] = results
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		writeError(w, errs.Wrap(errs.BadRequest, err, "invalid action index"))
		return
	}
	if err := s.mgr.DeleteAction(id, idx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteAllRecords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mgr.DeleteAllRecords(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.mgr.ListRecordings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, dir, dataDir, enabled, err := s.mgr.GetRecording(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !enabled {
		writeJSON(w, http.StatusOK, map[string]any{
			"recordingEnabled": false,
			"message":          "recording is not enabled for this page",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": rec.ID, "name": rec.Name, "description": rec.Description,
		"actions": rec.Actions, "basePath": dir, "dataPath": dataDir,
	})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.replay.Run(r.Context(), req.Actions, req.Options)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
