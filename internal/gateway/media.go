package gateway

import (
	"context"
	"net/http"

	"github.com/flemzord/brandai/internal/media"
	"github.com/flemzord/brandai/internal/security"
)

func (g *Gateway) handleImage() http.HandlerFunc {
	return mediaHandler(g, func(ctx context.Context, job media.ImageJob) (media.Result, error) {
		return g.media.GenerateImage(ctx, job)
	}, func(job media.ImageJob) (string, media.Backend) { return job.ComfyBaseURL, job.Backend })
}

func (g *Gateway) handleVideo() http.HandlerFunc {
	return mediaHandler(g, func(ctx context.Context, job media.VideoJob) (media.Result, error) {
		return g.media.GenerateVideo(ctx, job)
	}, func(job media.VideoJob) (string, media.Backend) { return job.ComfyBaseURL, job.Backend })
}

// mediaHandler decodes a job, vets any caller-supplied backend URL and
// runs the job on the bridge.
func mediaHandler[J any](g *Gateway, run func(context.Context, J) (media.Result, error), target func(J) (string, media.Backend)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.allow(w, r, security.KindMedia) {
			return
		}
		var job J
		if err := security.DecodeJSON(r.Body, g.config.MaxBodyBytes, &job); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		baseURL, backend := target(job)
		event := security.AuditEvent{
			Type:       security.EventMedia,
			Provider:   string(backend),
			RemoteAddr: clientKey(r),
		}
		if baseURL != "" {
			if err := g.urls.Check(baseURL); err != nil {
				event.Detail = err.Error()
				g.audit.Log(event)
				writeError(w, statusFor(err), err)
				return
			}
		}

		res, err := run(r.Context(), job)
		if err != nil {
			event.Detail = err.Error()
			g.audit.Log(event)
			writeError(w, statusFor(err), err)
			return
		}
		event.Detail = "ok"
		g.audit.Log(event)
		writeJSON(w, http.StatusOK, res)
	}
}
