package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
	"github.com/couchcryptid/flood-mesh-etl/internal/export"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000
	maxBodyBytes    = 1 << 20
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestSummary, error)
}

// CacheInvalidator drops cached query results of a project.
type CacheInvalidator interface {
	InvalidateProject(projectID int64)
}

// API serves the project, ingest and export endpoints.
type API struct {
	projects    domain.ProjectStore
	records     domain.RecordQuerier
	ingester    Ingester
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewAPI wires the endpoint handlers. invalidator may be nil.
func NewAPI(projects domain.ProjectStore, records domain.RecordQuerier, ingester Ingester, invalidator CacheInvalidator, logger *slog.Logger) *API {
	return &API{
		projects:    projects,
		records:     records,
		ingester:    ingester,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/risk-levels", a.handleRiskLevels)

	mux.HandleFunc("POST /api/projects", a.handleCreateProject)
	mux.HandleFunc("GET /api/projects", a.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", a.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", a.handleDeleteProject)
	mux.HandleFunc("POST /api/projects/{id}/ingest", a.handleIngest)

	mux.HandleFunc("GET /api/projects/{id}/grid", a.handleGrid)
	mux.HandleFunc("GET /api/projects/{id}/grid/timestamps", a.handleGridTimestamps)
	mux.HandleFunc("GET /api/projects/{id}/grid/records", a.handleGridRecords)

	mux.HandleFunc("GET /api/projects/{id}/stations", a.handleStations)
	mux.HandleFunc("GET /api/projects/{id}/stations/latest", a.handleLatestStations)
	mux.HandleFunc("GET /api/projects/{id}/stations/{name}/trend", a.handleStationTrend)
}

// badRequestError marks request parameters that failed to parse.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// writeDomainError maps err onto 400, 404 or 500.
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidProjectType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- projects ---

type projectJSON struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ForecastPeriod int    `json:"forecastPeriod"`
	StartTime      string `json:"startTime,omitempty"`
	Type           int    `json:"type"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func toProjectJSON(p domain.Project) projectJSON {
	out := projectJSON{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		ForecastPeriod: p.ForecastPeriod,
		Type:           int(p.Type),
		CreatedAt:      p.CreatedAt.Format(domain.TimeLayout),
		UpdatedAt:      p.UpdatedAt.Format(domain.TimeLayout),
	}
	if p.StartTime != nil {
		out.StartTime = p.StartTime.Format(domain.TimeLayout)
	}
	return out
}

type createProjectRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ForecastPeriod int    `json:"forecastPeriod"`
	StartTime      string `json:"startTime"`
	Type           int    `json:"type"`
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectRequest
	if err := decodeBody(w, r, &body); err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	p := domain.Project{
		Name:           strings.TrimSpace(body.Name),
		Description:    body.Description,
		ForecastPeriod: body.ForecastPeriod,
		Type:           domain.ProjectType(body.Type),
	}
	if body.StartTime != "" {
		st, err := time.Parse(domain.TimeLayout, body.StartTime)
		if err != nil {
			a.writeDomainError(w, r, badRequest("invalid startTime %q", body.StartTime))
			return
		}
		p.StartTime = &st
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := a.projects.CreateProject(r.Context(), p)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.logger.Info("project created", "project_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": created.ID})
}

type projectPage struct {
	Items []projectJSON `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	projects, total, err := a.projects.ListProjects(r.Context(), page, size)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	items := make([]projectJSON, len(projects))
	for i, p := range projects {
		items[i] = toProjectJSON(p)
	}
	writeJSON(w, http.StatusOK, projectPage{Items: items, Total: total, Page: page, Size: size})
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectJSON(p))
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if err := a.projects.DeleteProject(r.Context(), p.ID); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if a.invalidator != nil {
		a.invalidator.InvalidateProject(p.ID)
	}
	a.logger.Info("project deleted", "project_id", p.ID)
	w.WriteHeader(http.StatusNoContent)
}

// resolveProject looks up the {id} path value; "latest" names the most
// recently created project.
func (a *API) resolveProject(r *http.Request) (domain.Project, error) {
	raw := r.PathValue("id")
	if raw == "latest" {
		return a.projects.LatestProject(r.Context())
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return domain.Project{}, badRequest("invalid project id %q", raw)
	}
	return a.projects.GetProject(r.Context(), id)
}

// --- ingest ---

type ingestRequestBody struct {
	Dir           string   `json:"dir"`
	MinWaterDepth *float64 `json:"minWaterDepth"`
	Layers        []string `json:"layers"`
	RunModel      bool     `json:"runModel"`
	ModelArgs     []string `json:"modelArgs"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	var body ingestRequestBody
	if err := decodeOptionalBody(w, r, &body); err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	summary, err := a.ingester.Ingest(r.Context(), domain.IngestRequest{
		ProjectID:     p.ID,
		Dir:           body.Dir,
		MinWaterDepth: body.MinWaterDepth,
		Layers:        body.Layers,
		RunModel:      body.RunModel,
		ModelArgs:     body.ModelArgs,
	})
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- grid ---

func (a *API) handleGrid(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	q, err := parseExportQuery(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	var records []domain.GridRecord
	switch {
	case q.hasStart && q.hasEnd:
		records, err = a.records.GridBetween(ctx, p.ID, q.start, q.end)
	case q.hasStart:
		records, err = a.records.GridAt(ctx, p.ID, q.start)
	default:
		var ts []int64
		ts, err = a.records.GridTimestamps(ctx, p.ID)
		if err == nil && len(ts) > 0 {
			records, err = a.records.GridAt(ctx, p.ID, ts[0])
		}
	}
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	if q.bbox != nil {
		records = export.FilterGrid(records, *q.bbox)
	}

	if q.geojson {
		fc, err := export.GridFeatures(records)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		writeGeoJSON(w, fc)
		return
	}
	writeJSON(w, http.StatusOK, export.GridToJSON(records))
}

func (a *API) handleGridTimestamps(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	ts, err := a.records.GridTimestamps(r.Context(), p.ID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export.TimestampsToJSON(ts))
}

type gridPage struct {
	Items []export.GridJSON `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

func (a *API) handleGridRecords(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	records, total, err := a.records.GridPage(r.Context(), p.ID, page, size)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gridPage{Items: export.GridToJSON(records), Total: total, Page: page, Size: size})
}

// --- stations ---

func (a *API) handleStations(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	q, err := parseExportQuery(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	var records []domain.StationRecord
	switch {
	case q.hasStart && q.hasEnd:
		records, err = a.records.StationsBetween(ctx, p.ID, q.start, q.end)
	case q.hasStart:
		records, err = a.records.StationsAt(ctx, p.ID, q.start)
	default:
		records, err = a.records.LatestStations(ctx, p.ID)
	}
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.writeStations(w, r, records, q)
}

func (a *API) handleLatestStations(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	q, err := parseExportQuery(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	records, err := a.records.LatestStations(r.Context(), p.ID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.writeStations(w, r, records, q)
}

func (a *API) handleStationTrend(w http.ResponseWriter, r *http.Request) {
	p, err := a.resolveProject(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	q, err := parseExportQuery(r)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	start, end := int64(math.MinInt64), int64(math.MaxInt64)
	if q.hasStart {
		start = q.start
	}
	if q.hasEnd {
		end = q.end
	}
	records, err := a.records.StationTrend(r.Context(), p.ID, r.PathValue("name"), start, end)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.writeStations(w, r, records, q)
}

func (a *API) writeStations(w http.ResponseWriter, r *http.Request, records []domain.StationRecord, q exportQuery) {
	if q.bbox != nil {
		records = export.FilterStations(records, *q.bbox)
	}
	if q.geojson {
		fc, err := export.StationFeatures(records)
		if err != nil {
			a.writeDomainError(w, r, err)
			return
		}
		writeGeoJSON(w, fc)
		return
	}
	writeJSON(w, http.StatusOK, export.StationsToJSON(records))
}

func (a *API) handleRiskLevels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, export.RiskLevels())
}

// --- request parsing ---

type exportQuery struct {
	start, end       int64
	hasStart, hasEnd bool
	geojson          bool
	bbox             *export.BBox
}

// parseExportQuery reads start_time, end_time, format and bbox.
func parseExportQuery(r *http.Request) (exportQuery, error) {
	var q exportQuery
	v := r.URL.Query()

	if s := v.Get("start_time"); s != "" {
		ts, err := domain.Encode(s)
		if err != nil {
			return q, badRequest("invalid start_time %q", s)
		}
		q.start, q.hasStart = ts, true
	}
	if s := v.Get("end_time"); s != "" {
		ts, err := domain.Encode(s)
		if err != nil {
			return q, badRequest("invalid end_time %q", s)
		}
		q.end, q.hasEnd = ts, true
	}
	if q.hasStart && q.hasEnd && q.start > q.end {
		return q, badRequest("start_time is after end_time")
	}

	switch f := v.Get("format"); f {
	case "", "json":
	case "geojson":
		q.geojson = true
	default:
		return q, badRequest("unsupported format %q", f)
	}

	if s := v.Get("bbox"); s != "" {
		b, err := export.ParseBBox(s)
		if err != nil {
			return q, badRequest("%v", err)
		}
		q.bbox = &b
	}
	return q, nil
}

func pageParams(r *http.Request) (page, size int, err error) {
	page, size = 1, defaultPageSize
	v := r.URL.Query()
	if s := v.Get("page"); s != "" {
		page, err = strconv.Atoi(s)
		if err != nil || page < 1 {
			return 0, 0, badRequest("invalid page %q", s)
		}
	}
	if s := v.Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil || size < 1 || size > maxPageSize {
			return 0, 0, badRequest("invalid size %q", s)
		}
	}
	return page, size, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return decodeJSONBody(w, r, v, false)
}

// decodeOptionalBody leaves v untouched when the body is empty, whatever the
// framing of the request.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) error {
	return decodeJSONBody(w, r, v, true)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return badRequest("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func writeGeoJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
