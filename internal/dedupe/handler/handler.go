package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/service"
	"stmtguard/internal/platform/metrics"
	"stmtguard/internal/platform/middleware"
	id "stmtguard/pkg/domain"
	dErrors "stmtguard/pkg/domain-errors"
	"stmtguard/pkg/platform/httputil"
	"stmtguard/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the statement operations exposed over HTTP.
type Service interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
	Dedupe(ctx context.Context, req service.DedupeRequest) (*models.CorrelationReport, error)
}

const (
	fileField = "bankStatement"
	// multipart framing on top of the file itself
	formOverhead = 1 << 20
)

// Handler serves the bank statement endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	metrics        *metrics.Metrics
	jwtValidator   middleware.JWTValidator
	maxUploadBytes int64
}

// New creates a statement Handler. A nil validator disables authentication,
// which only the CLI and tests should do.
func New(
	svc Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	maxUploadBytes int64) *Handler {
	return &Handler{
		service:        svc,
		logger:         logger,
		metrics:        metrics,
		jwtValidator:   jwtValidator,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the statement routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/realms/{realmId}/users/{userId}/bank-statements", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Latency(h.metrics, routePattern))
		if h.jwtValidator != nil {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			r.Use(middleware.RequireRealm(func(r *http.Request) string { return chi.URLParam(r, "realmId") }, h.logger))
		}
		r.Post("/", h.handleIngest)
		r.Post("/dedupe", h.handleDedupe)
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

// handleIngest tokenizes and stores a statement for later dedupe checks.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, realmID, err := pathIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	upload, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid ingest upload",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	sourceType, err := models.ParseSourceType(r.FormValue("sourceType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Ingest(ctx, service.IngestRequest{
		UserID:     userID,
		RealmID:    realmID,
		SourceType: sourceType,
		MediaLink:  r.FormValue("mediaLink"),
		Upload:     upload,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "ingest", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, NewIngestResponse(userID, realmID, res))
}

// handleDedupe checks a statement against everyone else's.
func (h *Handler) handleDedupe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, realmID, err := pathIdentity(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	upload, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid dedupe upload",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	req := service.DedupeRequest{UserID: userID, RealmID: realmID, Upload: upload}
	if v := r.FormValue("hashType"); v != "" {
		if req.HashType, err = models.ParseHashType(v); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if v := r.FormValue("accountNumber"); v != "" {
		if req.AccountNumber, err = id.ParseAccountNumber(v); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	report, err := h.service.Dedupe(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "dedupe", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, NewDedupeResponse(report))
}

func pathIdentity(r *http.Request) (id.UserID, id.RealmID, error) {
	realmID, err := id.ParseRealmID(chi.URLParam(r, "realmId"))
	if err != nil {
		return 0, "", err
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		return 0, "", err
	}
	return userID, realmID, nil
}

// readUpload enforces the size limit twice: on the whole body, so an
// oversized request is never buffered, and on the file part itself.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (service.Upload, error) {
	tooLarge := dErrors.New(dErrors.CodePayloadTooLarge, "bank statement file exceeds the upload limit")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return service.Upload{}, tooLarge
		}
		return service.Upload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "request must be multipart/form-data")
	}
	file, header, err := r.FormFile(fileField)
	if err != nil {
		return service.Upload{}, dErrors.New(dErrors.CodeBadRequest, "bankStatement file is required")
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return service.Upload{}, tooLarge
	}
	body, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return service.Upload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read bankStatement file")
	}
	if int64(len(body)) > h.maxUploadBytes {
		return service.Upload{}, tooLarge
	}
	if len(body) == 0 {
		return service.Upload{}, dErrors.New(dErrors.CodeInvalidInput, "bank statement file cannot be empty")
	}
	h.metrics.ObserveUpload(len(body))

	return service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "statement operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "statement operation rejected",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
