package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/ticket-report-export/internal/dto"
	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/export"
	"github.com/noah-isme/ticket-report-export/pkg/raster"
)

// DocumentFilename is the name of every delivered report.
const DocumentFilename = "statistics-report-tickets.pdf"

// Alert messages shown to the user until the failure is acknowledged.
const (
	AlertTabularFailed  = "Não foi possível exportar os dados de chamados."
	AlertRasterFailed   = "Não foi possível exportar o gráfico."
	AlertDocumentFailed = "Não foi possível gerar o relatório em PDF."
)

type ticketSource interface {
	Fetch(ctx context.Context, identity string) ([]models.TicketRecord, error)
}

type surfaceResolver interface {
	Surface(owner, id string) raster.Surface
}

type surfaceRasterizer interface {
	Rasterize(ctx context.Context, surface raster.Surface, caption string, opts raster.Options) (*raster.Artifact, error)
	Defaults() raster.Options
}

type documentLayout interface {
	Build(items []raster.Artifact, meta export.DocumentMeta) (*export.Document, error)
}

type documentEncoder interface {
	RenderDocument(doc *export.Document) ([]byte, error)
}

type tabularEncoder interface {
	Render(data export.Dataset) ([]byte, error)
}

type artifactDeliverer interface {
	Deliver(ctx context.Context, req models.ExportRequest, contentType string, payload []byte) (*models.Delivery, error)
}

type exportMetrics interface {
	ObserveExport(kind, outcome string, duration time.Duration)
	ObserveDocumentPages(pages int)
	SetExportsInFlight(n int)
}

// ExportOrchestratorConfig tunes the export pipeline.
type ExportOrchestratorConfig struct {
	DocumentTitle       string
	SurfaceOrder        []string
	DegradeOnFetchError bool
	Locale              DateLocale
}

// exportTransitions lists every allowed state change.
var exportTransitions = map[models.ExportState][]models.ExportState{
	models.ExportStateIdle:  {models.ExportStateBusy},
	models.ExportStateBusy:  {models.ExportStateIdle, models.ExportStateError},
	models.ExportStateError: {models.ExportStateIdle},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to models.ExportState) bool {
	for _, next := range exportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// exportSession is the lifecycle of one caller's exports.
type exportSession struct {
	state        models.ExportState
	active       *models.ExportRequest
	alert        *models.ExportAlert
	lastDelivery *models.Delivery
}

func sessionKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExportOrchestrator runs at most one export per caller and keeps each caller's
// lifecycle state apart from everyone else's.
type ExportOrchestrator struct {
	fetcher    ticketSource
	surfaces   surfaceResolver
	rasterizer surfaceRasterizer
	layout     documentLayout
	pdf        documentEncoder
	csv        tabularEncoder
	delivery   artifactDeliverer
	metrics    exportMetrics
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportOrchestratorConfig
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*exportSession
	inFlight int
}

// NewExportOrchestrator wires the export pipeline.
func NewExportOrchestrator(
	fetcher ticketSource,
	surfaces surfaceResolver,
	rasterizer surfaceRasterizer,
	layout documentLayout,
	pdf documentEncoder,
	csv tabularEncoder,
	delivery artifactDeliverer,
	metrics exportMetrics,
	cfg ExportOrchestratorConfig,
	logger *zap.Logger,
) *ExportOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = (*MetricsService)(nil)
	}
	if cfg.DocumentTitle == "" {
		cfg.DocumentTitle = "Relatório de Estatísticas de Chamados"
	}
	if cfg.Locale.Layout == "" {
		cfg.Locale = NewDateLocale("", "")
	}
	return &ExportOrchestrator{
		fetcher:    fetcher,
		surfaces:   surfaces,
		rasterizer: rasterizer,
		layout:     layout,
		pdf:        pdf,
		csv:        csv,
		delivery:   delivery,
		metrics:    metrics,
		validator:  validator.New(),
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		sessions:   make(map[string]*exportSession),
	}
}

// Status returns a copy of the caller's lifecycle state.
func (o *ExportOrchestrator) Status(caller models.Caller) models.ExportStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	session := o.peek(caller.Email)
	status := models.ExportStatus{State: session.state, Busy: session.state == models.ExportStateBusy}
	if session.active != nil {
		active := *session.active
		status.Active = &active
	}
	if session.alert != nil {
		alert := *session.alert
		status.Alert = &alert
	}
	if session.lastDelivery != nil {
		delivery := *session.lastDelivery
		status.LastDelivery = &delivery
	}
	return status
}

// Acknowledge dismisses the caller's pending failure alert. It is a no-op when idle.
func (o *ExportOrchestrator) Acknowledge(caller models.Caller) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	session := o.peek(caller.Email)
	switch session.state {
	case models.ExportStateIdle:
		return nil
	case models.ExportStateError:
		if err := transition(session, models.ExportStateIdle); err != nil {
			return err
		}
		o.logger.Sugar().Infow("export alert acknowledged", "request_id", session.alert.RequestID, "requester", caller.Email)
		session.alert = nil
		return nil
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot acknowledge while an export is running")
	}
}

// ExportTabular fetches the caller's tickets and delivers them as a semicolon separated file.
func (o *ExportOrchestrator) ExportTabular(ctx context.Context, caller models.Caller) (*models.Delivery, error) {
	filename := fmt.Sprintf("statistics-tickets-%s.csv", o.now().UTC().Format("2006-01-02"))
	req, err := o.begin(models.ExportKindTabular, caller, nil, filename)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, req, func(ctx context.Context) (*models.Delivery, error) {
		records, err := o.fetcher.Fetch(ctx, caller.Email)
		if err != nil {
			if !o.cfg.DegradeOnFetchError {
				return nil, err
			}
			o.logger.Sugar().Warnw("statistics unavailable, exporting headers only",
				"request_id", req.ID,
				"requester", caller.Email,
				"error", err,
			)
			records = []models.TicketRecord{}
		}
		payload, err := o.csv.Render(FormatTickets(records, o.cfg.Locale))
		if err != nil {
			return nil, err
		}
		delivery, err := o.delivery.Deliver(ctx, *req, "text/csv; charset=utf-8", payload)
		if err != nil {
			return nil, err
		}
		delivery.Rows = len(records)
		return delivery, nil
	})
}

// ExportSingleRaster delivers one chart as a PNG named after filename, or after the
// chart title when filename is empty.
func (o *ExportOrchestrator) ExportSingleRaster(ctx context.Context, caller models.Caller, surfaceID, filename string) (*models.Delivery, error) {
	input := dto.RasterExportRequest{SurfaceID: surfaceID, Filename: filename}
	if err := o.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid raster export request")
	}
	surface := o.surfaces.Surface(caller.Email, surfaceID)
	name := strings.TrimSuffix(strings.TrimSpace(filename), ".png")
	if name == "" && surface != nil {
		name = surface.Title()
	}
	req, err := o.begin(models.ExportKindRaster, caller, []string{surfaceID}, rasterFilename(name, surfaceID))
	if err != nil {
		return nil, err
	}
	return o.run(ctx, req, func(ctx context.Context) (*models.Delivery, error) {
		artifact, err := o.rasterizer.Rasterize(ctx, surface, "", o.rasterizer.Defaults())
		if err != nil {
			return nil, err
		}
		return o.delivery.Deliver(ctx, *req, "image/png", artifact.Payload)
	})
}

// ExportDocument rasterizes the charts one after another in the given order and
// delivers them as a paginated PDF. Any chart failure aborts the whole document.
func (o *ExportOrchestrator) ExportDocument(ctx context.Context, caller models.Caller, surfaceIDs []string) (*models.Delivery, error) {
	if len(surfaceIDs) == 0 {
		surfaceIDs = o.cfg.SurfaceOrder
	}
	input := dto.DocumentExportRequest{Surfaces: surfaceIDs}
	if err := o.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document export request")
	}
	if len(surfaceIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no charts selected for the report")
	}
	ids := append([]string(nil), surfaceIDs...)
	req, err := o.begin(models.ExportKindDocument, caller, ids, DocumentFilename)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, req, func(ctx context.Context) (*models.Delivery, error) {
		opts := o.rasterizer.Defaults()
		items := make([]raster.Artifact, 0, len(ids))
		for _, id := range ids {
			artifact, err := o.rasterizer.Rasterize(ctx, o.surfaces.Surface(caller.Email, id), "", opts)
			if err != nil {
				return nil, err
			}
			items = append(items, *artifact)
		}

		doc, err := o.layout.Build(items, export.DocumentMeta{
			Title:       o.cfg.DocumentTitle,
			Requester:   caller.DisplayName(),
			GeneratedAt: o.cfg.Locale.Format(o.now()),
		})
		if err != nil {
			return nil, err
		}
		payload, err := o.pdf.RenderDocument(doc)
		if err != nil {
			return nil, err
		}
		delivery, err := o.delivery.Deliver(ctx, *req, "application/pdf", payload)
		if err != nil {
			return nil, err
		}
		delivery.Pages = len(doc.Pages)
		o.metrics.ObserveDocumentPages(delivery.Pages)
		return delivery, nil
	})
}

func (o *ExportOrchestrator) begin(kind models.ExportKind, caller models.Caller, surfaceIDs []string, filename string) (*models.ExportRequest, error) {
	if sessionKey(caller.Email) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "export requires an identified caller")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	session := o.session(caller.Email)
	switch session.state {
	case models.ExportStateBusy:
		o.metrics.ObserveExport(string(kind), ExportOutcomeRejected, 0)
		return nil, appErrors.ErrExportBusy
	case models.ExportStateError:
		o.metrics.ObserveExport(string(kind), ExportOutcomeRejected, 0)
		return nil, appErrors.ErrAlertPending
	}
	if err := transition(session, models.ExportStateBusy); err != nil {
		return nil, err
	}
	req := &models.ExportRequest{
		ID:         uuid.NewString(),
		Kind:       kind,
		Requester:  caller.Email,
		SurfaceIDs: surfaceIDs,
		Filename:   filename,
		CreatedAt:  o.now().UTC(),
	}
	session.active = req
	o.inFlight++
	o.metrics.SetExportsInFlight(o.inFlight)
	o.logger.Sugar().Infow("export started", "request_id", req.ID, "kind", kind, "requester", caller.Email)
	return req, nil
}

func (o *ExportOrchestrator) run(ctx context.Context, req *models.ExportRequest, work func(ctx context.Context) (*models.Delivery, error)) (delivery *models.Delivery, err error) {
	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			delivery = nil
			err = o.fail(req, fmt.Errorf("export panicked: %v", r), start)
		}
	}()
	delivery, err = work(ctx)
	if err != nil {
		return nil, o.fail(req, err, start)
	}
	o.finish(req, delivery, start)
	return delivery, nil
}

func (o *ExportOrchestrator) finish(req *models.ExportRequest, delivery *models.Delivery, start time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session := o.session(req.Requester)
	if err := transition(session, models.ExportStateIdle); err != nil {
		o.logger.Error("export finish rejected", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	session.active = nil
	session.lastDelivery = delivery
	o.inFlight--
	o.metrics.SetExportsInFlight(o.inFlight)
	o.metrics.ObserveExport(string(req.Kind), ExportOutcomeDelivered, o.now().Sub(start))
}

func (o *ExportOrchestrator) fail(req *models.ExportRequest, cause error, start time.Time) error {
	appErr := classifyExportError(cause)
	o.mu.Lock()
	defer o.mu.Unlock()
	session := o.session(req.Requester)
	if err := transition(session, models.ExportStateError); err != nil {
		o.logger.Error("export failure transition rejected", zap.String("request_id", req.ID), zap.Error(err))
		return appErr
	}
	session.active = nil
	session.alert = &models.ExportAlert{
		RequestID: req.ID,
		Kind:      req.Kind,
		Code:      appErr.Code,
		Message:   alertMessage(req.Kind),
		Detail:    cause.Error(),
		RaisedAt:  o.now().UTC(),
	}
	o.inFlight--
	o.metrics.SetExportsInFlight(o.inFlight)
	o.metrics.ObserveExport(string(req.Kind), ExportOutcomeFailed, o.now().Sub(start))
	o.logger.Error("export failed",
		zap.String("request_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("requester", req.Requester),
		zap.String("code", appErr.Code),
		zap.Error(cause),
	)
	return appErr
}

// session returns the caller's session, creating an idle one. mu must be held.
func (o *ExportOrchestrator) session(email string) *exportSession {
	key := sessionKey(email)
	session, ok := o.sessions[key]
	if !ok {
		session = &exportSession{state: models.ExportStateIdle}
		o.sessions[key] = session
	}
	return session
}

// peek returns the caller's session without registering it. mu must be held.
func (o *ExportOrchestrator) peek(email string) *exportSession {
	if session, ok := o.sessions[sessionKey(email)]; ok {
		return session
	}
	return &exportSession{state: models.ExportStateIdle}
}

func transition(session *exportSession, to models.ExportState) error {
	if !CanTransition(session.state, to) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("export state %s cannot move to %s", session.state, to))
	}
	session.state = to
	return nil
}

func classifyExportError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, raster.ErrSurfaceTainted):
		return appErrors.Wrap(err, appErrors.ErrSurfaceTainted.Code, appErrors.ErrSurfaceTainted.Status, appErrors.ErrSurfaceTainted.Message)
	case errors.Is(err, raster.ErrSurfaceUnavailable):
		return appErrors.Wrap(err, appErrors.ErrSurfaceUnavailable.Code, appErrors.ErrSurfaceUnavailable.Status, appErrors.ErrSurfaceUnavailable.Message)
	case errors.Is(err, export.ErrAssembly):
		return appErrors.Wrap(err, appErrors.ErrAssembly.Code, appErrors.ErrAssembly.Status, appErrors.ErrAssembly.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export failed")
	}
}

func alertMessage(kind models.ExportKind) string {
	switch kind {
	case models.ExportKindTabular:
		return AlertTabularFailed
	case models.ExportKindRaster:
		return AlertRasterFailed
	default:
		return AlertDocumentFailed
	}
}

func rasterFilename(name, fallback string) string {
	slug := Slugify(name)
	if slug == "" {
		slug = Slugify(fallback)
	}
	if slug == "" {
		slug = "grafico"
	}
	return slug + ".png"
}

// Slugify lowercases s, strips accents and joins words with hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
