package browser

import (
	"net/http"
	"strconv"

	"rebase/pkg/apperror"
	"rebase/pkg/logger"
	"rebase/pkg/respond"
)

type Handler struct {
	Browser *Browser
}

func NewHandler(b *Browser) *Handler {
	return &Handler{Browser: b}
}

// Register mounts the browse routes under prefix, e.g. "/rebase/data".
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/folders", h.ListFolders)
	mux.HandleFunc("GET "+prefix+"/images", h.ListImages)
	mux.HandleFunc("GET "+prefix+"/view", h.View)
}

func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.Browser.ListFolders(kindParam(r))
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list folders: %v", err)
		apperror.WriteJSON(w, err)
		return
	}
	respond.OK(w, map[string][]string{"folders": folders})
}

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")

	images, err := h.Browser.ListFiles(kindParam(r), folder)
	if err != nil {
		apperror.WriteJSON(w, err)
		return
	}
	respond.OK(w, map[string][]Image{"images": images})
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	data, contentType, err := h.Browser.ReadFile(kindParam(r), q.Get("folder"), q.Get("filename"))
	if err != nil {
		if apperror.KindOf(err) == apperror.Internal {
			logger.Sugar.Errorf("Handler: Failed to read %s: %v", q.Get("filename"), err)
		}
		apperror.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func kindParam(r *http.Request) string {
	if kind := r.URL.Query().Get("type"); kind != "" {
		return kind
	}
	return DefaultKind
}
