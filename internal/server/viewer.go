package server

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/compose"
	"github.com/joseph-ayodele/photo-receipts/internal/entity"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

const (
	viewerDateLayout = "January 2, 2006"
	viewerTimeLayout = "03:04 PM"
)

type viewerPhoto struct {
	ID          string
	URL         string
	Date        string
	Time        string
	DownloadURL string
}

type viewerPage struct {
	Title   string
	GroupID string
	Photos  []viewerPhoto
}

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;background:#111;color:#eee;text-align:center}
main{max-width:720px;margin:0 auto;padding:24px}
figure{margin:0 0 32px}
img{max-width:100%;border-radius:8px;box-shadow:0 4px 24px #000}
.meta{color:#aaa;font-size:14px;margin:8px 0}
a.button{display:inline-block;padding:10px 20px;background:#fff;color:#111;border-radius:6px;text-decoration:none}
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
{{range .Photos}}<figure>
<img src="{{.URL}}" alt="Photo {{.ID}}">
<figcaption>
{{if .Date}}<p class="meta">{{.Date}} at {{.Time}}</p>{{end}}
<p class="meta">Photo ID: {{.ID}}</p>
<a class="button" href="{{.DownloadURL}}">Download</a>
</figcaption>
</figure>
{{end}}</main>
</body>
</html>
`))

var notFoundTemplate = template.Must(template.New("not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Not found</title></head>
<body style="font-family:system-ui,sans-serif;text-align:center;padding:48px">
<h1>{{.}}</h1>
<p>The link may have expired or been mistyped.</p>
</body>
</html>
`))

// pathID returns the unescaped {id} route variable.
func pathID(r *http.Request) (string, error) {
	return url.PathUnescape(mux.Vars(r)["id"])
}

// handleViewer renders a receipt group (?receiptId=) or a single photo.
// A single photo comes from the registry; a ?url= is accepted only for unregistered photos and
// only when it is an https URL on an allowed media host. URLs are never derived from identifiers.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil || id == "" {
		s.renderNotFound(w, "Photo not found")
		return
	}

	if groupID := r.URL.Query().Get("receiptId"); groupID != "" {
		g, err := s.deps.Photos.GetGroup(r.Context(), groupID)
		if err != nil {
			s.viewerLookupFailed(w, r, err, "Receipt not found")
			return
		}
		page := viewerPage{Title: "Your Photo Receipt", GroupID: g.ID}
		for _, p := range g.Photos {
			page.Photos = append(page.Photos, s.viewerPhoto(p))
		}
		s.renderViewer(w, page)
		return
	}

	p, err := s.resolvePhoto(r, id)
	if err != nil {
		s.viewerLookupFailed(w, r, err, "Photo not found")
		return
	}
	s.renderViewer(w, viewerPage{Title: "Your Photo", Photos: []viewerPhoto{s.viewerPhoto(*p)}})
}

// resolvePhoto finds the photo in the registry, falling back to a trusted ?url= parameter.
func (s *Server) resolvePhoto(r *http.Request, id string) (*entity.Photo, error) {
	p, err := s.deps.Photos.Get(r.Context(), id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if u := r.URL.Query().Get("url"); u != "" && transport.HostAllowed(u, s.deps.MediaHosts) {
		return &entity.Photo{ID: id, RetrievalURL: u}, nil
	}
	return nil, err
}

func (s *Server) viewerPhoto(p entity.Photo) viewerPhoto {
	vp := viewerPhoto{
		ID:          p.ID,
		URL:         p.RetrievalURL,
		DownloadURL: "/photo/" + url.PathEscape(p.ID) + "/download",
	}
	if p.Timestamp == "" {
		vp.DownloadURL += "?url=" + url.QueryEscape(p.RetrievalURL)
	} else if t, err := p.Time(); err == nil {
		local := t.In(s.deps.Location)
		vp.Date = local.Format(viewerDateLayout)
		vp.Time = local.Format(viewerTimeLayout)
	}
	return vp
}

func (s *Server) renderViewer(w http.ResponseWriter, page viewerPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewerTemplate.Execute(w, page); err != nil {
		s.logger.Error("viewer.render_error", "error", err)
	}
}

func (s *Server) renderNotFound(w http.ResponseWriter, title string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_ = notFoundTemplate.Execute(w, title)
}

func (s *Server) viewerLookupFailed(w http.ResponseWriter, r *http.Request, err error, title string) {
	if errors.Is(err, repository.ErrNotFound) {
		s.renderNotFound(w, title)
		return
	}
	s.logger.Error("viewer.lookup_error", "req_id", common.RequestIDFromContext(r.Context()), "error", err)
	http.Error(w, "Something went wrong", http.StatusInternalServerError)
}

// handleDownload streams the photo as an attachment named photo-<id>.jpg.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r)
	if err != nil || id == "" {
		s.renderNotFound(w, "Photo not found")
		return
	}
	p, err := s.resolvePhoto(r, id)
	if err != nil {
		s.viewerLookupFailed(w, r, err, "Photo not found")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, p.RetrievalURL, nil)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: bad retrieval url: %v", common.ErrUpstream, err))
		return
	}
	resp, err := s.deps.MediaClient.Do(req)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: fetch photo: %v", common.ErrUpstream, err))
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		s.writeError(w, r, fmt.Errorf("%w: media host answered %d", common.ErrUpstream, resp.StatusCode))
		return
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = constants.ContentTypeForExt(path.Ext(resp.Request.URL.Path))
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, "photo-"+compose.SafeID(id)+".jpg"))
	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		s.logger.Warn("viewer.download.copy_error", "photo_id", id, "error", err)
		return
	}
	s.logger.Info("viewer.download.ok", "photo_id", id, "bytes", n, "elapsed_ms", time.Since(start).Milliseconds())
}
