package handler

import (
	"encoding/json"
	"net/http"

	"rebase/internal/document/model"
	"rebase/internal/document/service"
	"rebase/pkg/apperror"
	"rebase/pkg/logger"
	"rebase/pkg/respond"
)

// DocumentHandler serves save/list/load/delete for one document kind.
type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// Register mounts the handler's routes under prefix, e.g. "/rebase/diff".
func (h *DocumentHandler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("POST "+prefix+"/save", h.Save)
	mux.HandleFunc("GET "+prefix+"/list", h.List)
	mux.HandleFunc("GET "+prefix+"/load/{filename}", h.Load)
	mux.HandleFunc("DELETE "+prefix+"/delete/{filename}", h.Delete)
}

func (h *DocumentHandler) Save(w http.ResponseWriter, r *http.Request) {
	kind := h.Service.Kind()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperror.WriteJSON(w, apperror.Invalid("Invalid request body"))
		return
	}

	var name string
	if raw, ok := body["name"]; ok {
		_ = json.Unmarshal(raw, &name) // non-string names count as missing
	}

	filename, err := h.Service.Save(name, body[kind.Field])
	if err != nil {
		if apperror.KindOf(err) == apperror.Internal {
			logger.Sugar.Errorf("Handler: Failed to save %s %q: %v", kind.Name, name, err)
		}
		apperror.WriteJSON(w, err)
		return
	}

	logger.Sugar.Infof("Saved %s %q as %s", kind.Name, name, filename)
	respond.OK(w, model.SaveResponse{Success: true, Filename: filename})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := h.Service.Kind()

	entries, err := h.Service.List()
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list %s: %v", kind.ListKey, err)
		apperror.WriteJSON(w, err)
		return
	}

	respond.OK(w, map[string][]model.Entry{kind.ListKey: entries})
}

func (h *DocumentHandler) Load(w http.ResponseWriter, r *http.Request) {
	kind := h.Service.Kind()
	filename := r.PathValue("filename")

	payload, err := h.Service.Load(filename)
	if err != nil {
		if apperror.KindOf(err) == apperror.Internal {
			logger.Sugar.Errorf("Handler: Failed to load %s %s: %v", kind.Name, filename, err)
		}
		apperror.WriteJSON(w, err)
		return
	}

	respond.OK(w, map[string]json.RawMessage{kind.Field: payload})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	if err := h.Service.Delete(filename); err != nil {
		apperror.WriteJSON(w, err)
		return
	}

	logger.Sugar.Infof("Deleted %s %s", h.Service.Kind().Name, filename)
	respond.OK(w, model.SuccessResponse{Success: true})
}
