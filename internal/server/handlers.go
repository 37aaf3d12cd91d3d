package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exa-sheets/internal/grid"
	"github.com/sells-group/exa-sheets/internal/session"
	"github.com/sells-group/exa-sheets/internal/sheetio"
	"github.com/sells-group/exa-sheets/internal/store"
)

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Header      []string   `json:"header"`
	Rows        int        `json:"rows"`
	PendingRows []int      `json:"pending_rows"`
	LastSample  []int      `json:"last_sample,omitempty"`
	Preview     [][]string `json:"preview"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type fillView struct {
	ID          string     `json:"id"`
	Rows        []int      `json:"rows"`
	PendingRows []int      `json:"pending_rows"`
	Preview     [][]string `json:"preview"`
}

func (s *Server) view(sess *store.Session) sessionView {
	pending := sess.Output.Pending()
	if pending == nil {
		pending = []int{}
	}
	return sessionView{
		ID:          sess.ID,
		Name:        sess.Name,
		Header:      sess.Input.Header(),
		Rows:        sess.Input.Len(),
		PendingRows: pending,
		LastSample:  sess.LastSample,
		Preview:     sess.Output.SubsetRecords(sess.Output.Head(s.previewRows)),
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
	}
}

func fillResult(res *session.Result) fillView {
	pending := res.Session.Output.Pending()
	if pending == nil {
		pending = []int{}
	}
	return fillView{
		ID:          res.Session.ID,
		Rows:        res.Rows,
		PendingRows: pending,
		Preview:     res.Preview,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	var in *grid.Grid
	switch strings.ToLower(filepath.Ext(hdr.Filename)) {
	case ".csv":
		in, err = sheetio.ReadCSV(bytes.NewReader(data))
	case ".xlsx", "":
		in, err = sheetio.ReadXLSXBytes(data)
	default:
		writeError(w, http.StatusBadRequest, "upload must be .xlsx or .csv")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = hdr.Filename
	}
	sess, err := s.manager.Start(r.Context(), name, in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(sess))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SessionFilter{Name: q.Get("name")}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	list, err := s.manager.List(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	rows, err := intParam(r.URL.Query().Get("rows"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rows must be a non-negative integer")
		return
	}
	res, err := s.manager.FillSample(r.Context(), chi.URLParam(r, "id"), rows)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fillResult(res))
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.FillRemaining(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fillResult(res))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheetio.WriteXLSX(&buf, sess.Output); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	name := DownloadName(s.now())
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn("server: download write", zap.String("session", sess.ID), zap.Error(err))
	}
}

// DownloadName returns the attachment name for a filled sheet exported at t.
func DownloadName(t time.Time) string {
	return "exa-sheets-output-" + t.UTC().Format("20060102-150405") + ".xlsx"
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Errorf("server: invalid integer %q", raw)
	}
	return n, nil
}
