package shell

import (
	"embed"
	"net/http"
)

//go:embed ui/index.html
var uiFS embed.FS

func (s *Shell) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	data, err := uiFS.ReadFile("ui/index.html")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("write ui index: %v", err)
	}
}
