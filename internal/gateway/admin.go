package gateway

import (
	"fmt"
	"net/http"
	"os"

	"github.com/flemzord/brandai/internal/core"
	"github.com/flemzord/brandai/internal/security"
	"gopkg.in/yaml.v3"
)

// ConfigPathService is the AppContext service name of the loaded config
// file path.
const ConfigPathService = "config.path"

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetConfig returns the config file with secrets redacted. Values
// are shown before ${VAR} expansion.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		path, _ := g.configPath()
		if path == "" {
			http.Error(w, "config path not set", http.StatusServiceUnavailable)
			return
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("reading config: %w", err))
			return
		}
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("parsing config: %w", err))
			return
		}

		redactor := security.NewRedactor()
		if svc, ok := g.appCtx.Service(security.RedactorService); ok {
			if shared, ok := svc.(*security.Redactor); ok {
				redactor = shared
			}
		}
		redactor.RedactMap(doc)
		writeJSON(w, http.StatusOK, doc)
	}
}

func (g *Gateway) configPath() (string, bool) {
	if g.appCtx == nil {
		return "", false
	}
	svc, ok := g.appCtx.Service(ConfigPathService)
	if !ok {
		return "", false
	}
	path, ok := svc.(string)
	return path, ok
}
