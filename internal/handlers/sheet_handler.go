package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/lock"
	"campaign-sheet-service/internal/middleware"
	"campaign-sheet-service/internal/models"
	"campaign-sheet-service/internal/services"
)

// ArticleImages downloads the pictures of the article numbers in a workbook
type ArticleImages interface {
	Download(ctx context.Context, workbook []byte) ([]byte, *services.Summary, error)
}

// SheetHandlerConfig bounds every operation the handler runs
type SheetHandlerConfig struct {
	OperationTimeout time.Duration
	SessionLockTTL   time.Duration
}

type SheetHandler struct {
	registry *services.Registry
	articles ArticleImages
	tracker  *services.Tracker
	locker   lock.Locker
	cfg      SheetHandlerConfig
	logger   *logrus.Logger
}

func NewSheetHandler(registry *services.Registry, articles ArticleImages, tracker *services.Tracker, locker lock.Locker, cfg SheetHandlerConfig, logger *logrus.Logger) *SheetHandler {
	return &SheetHandler{
		registry: registry,
		articles: articles,
		tracker:  tracker,
		locker:   locker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Export lists the items of an activity into a workbook
// @Summary Export activity items
// @Description Exports every item enrolled in an activity with its apply form
// @Tags sheets
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param platform path string true "ju, tqg or tqc"
// @Param request body models.ExportRequest true "Session and activity"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /platforms/{platform}/export [post]
func (h *SheetHandler) Export(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var req models.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.OperationTimeout)
	defer cancel()

	op, log := h.start(ctx, c, svc.Platform(), models.OperationExport, req.SessionCredentials, req.ActivityEnterID)
	result, err := svc.Export(ctx, services.ExportParams{Session: session(req.SessionCredentials), Query: itemQuery(req)})
	h.tracker.Finish(ctx, op, summaryOf(result), err)
	if err != nil {
		respondError(c, log, err)
		return
	}
	h.sendWorkbook(c, log, result.Workbook, svc.Platform().FilePrefix()+"_ActivityItems.xlsx")
}

// Update submits every row of an uploaded workbook
// @Summary Update apply forms from a workbook
// @Description Uploads referenced pictures and submits each row; failed rows come back as a workbook
// @Tags sheets
// @Accept multipart/form-data
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param platform path string true "ju, tqg or tqc"
// @Param tbToken formData string true "Session token"
// @Param cookie2 formData string true "Session cookie"
// @Param sg formData string true "Session sg"
// @Param workbook formData file true "Edited export workbook"
// @Param picZip formData file false "Pictures referenced with zip://"
// @Success 200 {file} file
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /platforms/{platform}/update [post]
func (h *SheetHandler) Update(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var req models.UpdateRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingError(c, err)
		return
	}
	workbook, err := formFile(c, "workbook")
	if err != nil {
		bindingError(c, fmt.Errorf("workbook: %w", err))
		return
	}
	picZip, err := formFile(c, "picZip")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		bindingError(c, fmt.Errorf("picZip: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.OperationTimeout)
	defer cancel()

	release, ok := h.acquire(ctx, c, req.TbToken)
	if !ok {
		return
	}
	defer release()

	op, log := h.start(ctx, c, svc.Platform(), models.OperationUpdate, req.SessionCredentials, "")
	result, err := svc.Update(ctx, services.UpdateParams{
		Session:  session(req.SessionCredentials),
		Workbook: workbook,
		PicZip:   picZip,
	})
	h.tracker.Finish(ctx, op, summaryOf(result), err)
	if err != nil {
		respondError(c, log, err)
		return
	}
	if result.Workbook == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.sendWorkbook(c, log, result.Workbook, svc.Platform().FilePrefix()+"_ErrorItems.xlsx")
}

// Publish publishes every item of an activity
// @Summary Publish activity items
// @Tags sheets
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param platform path string true "ju, tqg or tqc"
// @Param request body models.PublishRequest true "Session and activity"
// @Success 200 {file} file
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Router /platforms/{platform}/publish [post]
func (h *SheetHandler) Publish(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.OperationTimeout)
	defer cancel()

	release, ok := h.acquire(ctx, c, req.TbToken)
	if !ok {
		return
	}
	defer release()

	op, log := h.start(ctx, c, svc.Platform(), models.OperationPublish, req.SessionCredentials, req.ActivityEnterID)
	result, err := svc.Publish(ctx, services.ExportParams{Session: session(req.SessionCredentials), Query: itemQuery(req.ExportRequest)})
	h.tracker.Finish(ctx, op, summaryOf(result), err)
	if err != nil {
		respondError(c, log, err)
		return
	}
	if result.Workbook == nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.sendWorkbook(c, log, result.Workbook, svc.Platform().FilePrefix()+"_PublishItemsError.xlsx")
}

// ArticleImages zips the transparent pictures of the listed article numbers
// @Summary Download article images
// @Tags articles
// @Accept multipart/form-data
// @Produce application/zip
// @Param workbook formData file true "Workbook with an Article No column"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Router /articles/images [post]
func (h *SheetHandler) ArticleImages(c *gin.Context) {
	workbook, err := formFile(c, "workbook")
	if err != nil {
		bindingError(c, fmt.Errorf("workbook: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.OperationTimeout)
	defer cancel()

	op, log := h.start(ctx, c, "", models.OperationArticles, models.SessionCredentials{}, "")
	data, summary, err := h.articles.Download(ctx, workbook)
	h.tracker.Finish(ctx, op, summary, err)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=ArticleImages.zip")
	c.Data(http.StatusOK, "application/zip", data)
}

func (h *SheetHandler) service(c *gin.Context) (services.SheetService, bool) {
	svc, err := h.registry.Get(c.Param("platform"))
	if err != nil {
		respondError(c, logrus.NewEntry(h.logger), err)
		return nil, false
	}
	return svc, true
}

// acquire takes the session lock or answers the request itself
func (h *SheetHandler) acquire(ctx context.Context, c *gin.Context, token string) (func(), bool) {
	release, err := h.locker.Acquire(ctx, lock.SessionKey(token), h.cfg.SessionLockTTL)
	if err != nil {
		respondError(c, h.logger.WithField("session", lock.TokenHash(token)), err)
		return nil, false
	}
	return release, true
}

func (h *SheetHandler) start(ctx context.Context, c *gin.Context, platform models.Platform, kind models.OperationKind, creds models.SessionCredentials, activity string) (*models.SheetOperation, *logrus.Entry) {
	op := &models.SheetOperation{
		Platform:        platform,
		Kind:            kind,
		ActivityEnterID: activity,
	}
	if creds.TbToken != "" {
		op.SessionHash = lock.TokenHash(creds.TbToken)
	}
	op = h.tracker.Start(ctx, op)
	c.Header("X-Operation-ID", op.ID.String())

	return op, h.logger.WithFields(logrus.Fields{
		"operation_id": op.ID.String(),
		"platform":     string(platform),
		"kind":         string(kind),
		"request_id":   c.GetString(middleware.RequestIDKey),
	})
}

func (h *SheetHandler) sendWorkbook(c *gin.Context, log *logrus.Entry, f *excelize.File, filename string) {
	defer f.Close()
	data, err := flow.WorkbookBytes(f)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func formFile(c *gin.Context, name string) ([]byte, error) {
	header, err := c.FormFile(name)
	if err != nil {
		return nil, err
	}
	return readUpload(header)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func session(creds models.SessionCredentials) clients.Session {
	return clients.Session{TbToken: creds.TbToken, Cookie2: creds.Cookie2, SG: creds.SG}
}

func itemQuery(req models.ExportRequest) clients.ItemQuery {
	return clients.ItemQuery{
		ActivityEnterID: req.ActivityEnterID,
		ItemStatusCode:  req.ItemStatusCode,
		ActionStatus:    req.ActionStatus,
	}
}

func summaryOf(result *services.Result) *services.Summary {
	if result == nil {
		return nil
	}
	return result.Summary
}
