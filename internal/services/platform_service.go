package services

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"campaign-sheet-service/internal/archive"
	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/models"
)

// ExportParams selects the items of an export or publish run
type ExportParams struct {
	Session clients.Session
	Query   clients.ItemQuery
}

// UpdateParams carries an uploaded workbook and its optional picture archive
type UpdateParams struct {
	Session  clients.Session
	Workbook []byte
	PicZip   []byte
}

// Result is the workbook a run produced plus what to record about it.
// Workbook is nil when an update or publish had no failures.
type Result struct {
	Workbook *excelize.File
	Summary  *Summary
}

// SheetService runs the sheet flows of one back-office
type SheetService interface {
	Platform() models.Platform
	Export(ctx context.Context, params ExportParams) (*Result, error)
	Update(ctx context.Context, params UpdateParams) (*Result, error)
	Publish(ctx context.Context, params ExportParams) (*Result, error)
}

// Options tunes the flows
type Options struct {
	PageSize          int
	PageConcurrency   int
	DetailConcurrency int
	MaxArchiveSize    int64
	// ImageClient downloads http(s) pictures referenced from a workbook
	ImageClient  *http.Client
	MaxImageSize int64
}

// PlatformService binds one back-office's form table to the flow engine
type PlatformService[T models.ApplyForm] struct {
	spec   *platformSpec[T]
	client clients.CampaignClient
	opts   Options
	logger *logrus.Entry
}

var _ SheetService = (*PlatformService[models.JuApplyForm])(nil)

func newPlatformService[T models.ApplyForm](spec *platformSpec[T], client clients.CampaignClient, opts Options, logger *logrus.Logger) *PlatformService[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = flow.DefaultPageSize
	}
	return &PlatformService[T]{
		spec:   spec,
		client: client,
		opts:   opts,
		logger: logger.WithFields(logrus.Fields{
			"component": "sheet-service",
			"platform":  string(spec.platform),
		}),
	}
}

// NewJuService creates the 聚划算 service
func NewJuService(client clients.CampaignClient, opts Options, logger *logrus.Logger) *PlatformService[models.JuApplyForm] {
	return newPlatformService(juSpec(), client, opts, logger)
}

// NewTaoQiangGouService creates the 淘抢购 service
func NewTaoQiangGouService(client clients.CampaignClient, opts Options, logger *logrus.Logger) *PlatformService[models.TaoQiangGouApplyForm] {
	return newPlatformService(taoQiangGouSpec(), client, opts, logger)
}

// NewTaoQingCangService creates the 淘清仓 service
func NewTaoQingCangService(client clients.CampaignClient, opts Options, logger *logrus.Logger) *PlatformService[models.TaoQingCangApplyForm] {
	return newPlatformService(taoQingCangSpec(), client, opts, logger)
}

func (s *PlatformService[T]) Platform() models.Platform {
	return s.spec.platform
}

// Titles lists the sheet columns of this platform
func (s *PlatformService[T]) Titles() []string {
	return flow.Titles(s.spec.mappings)
}

// Export lists every item of the activity and renders its apply form
func (s *PlatformService[T]) Export(ctx context.Context, params ExportParams) (*Result, error) {
	exporter := &flow.Exporter[clients.ListedItem, T]{
		QueryTotalCount: s.totalCount(params),
		QueryPage:       s.queryPage(params),
		FetchDetail: func(ctx context.Context, req flow.DetailRequest[clients.ListedItem]) (T, error) {
			var zero T
			fields, err := s.client.GetApplyForm(ctx, params.Session, req.Item.JuID, s.spec.scrape)
			if err != nil {
				return zero, err
			}
			return models.FormFromFields[T](fields)
		},
		Placeholder:       s.spec.placeholder,
		Mappings:          s.spec.mappings,
		PageSize:          s.opts.PageSize,
		PageConcurrency:   s.opts.PageConcurrency,
		DetailConcurrency: s.opts.DetailConcurrency,
		Logger:            s.logger.WithField("operation", "export"),
	}

	outcomes, err := exporter.Collect(ctx)
	if err != nil {
		return nil, err
	}
	f, err := flow.Assemble(s.spec.mappings, outcomes)
	if err != nil {
		return nil, err
	}
	return &Result{Workbook: f, Summary: summarize(outcomes, s.juID)}, nil
}

// Update submits every row of an edited workbook
func (s *PlatformService[T]) Update(ctx context.Context, params UpdateParams) (*Result, error) {
	f, err := flow.OpenWorkbook(params.Workbook)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resolver := &flow.ImageResolver{HTTPClient: s.opts.ImageClient, MaxBytes: s.opts.MaxImageSize}
	if len(params.PicZip) > 0 {
		entries, err := archive.ReadEntries(params.PicZip, s.opts.MaxArchiveSize)
		if err != nil {
			return nil, flow.Validationf("图片压缩包格式错误: %v", err)
		}
		resolver.Archive = entries
	}

	updater := &flow.Updater[T]{
		Mappings: s.spec.mappings,
		Images:   resolver,
		UploadImage: func(ctx context.Context, task flow.UploadTask[T]) (string, error) {
			wise, ok := s.spec.wise(task.Owner, task.Mapping)
			if !ok {
				return "", flow.Validationf("字段 %s 不支持上传图片", task.Mapping.Name)
			}
			return s.client.UploadImage(ctx, params.Session, wise, task.Image)
		},
		Submit: func(ctx context.Context, req flow.SubmitRequest[T]) error {
			fields, err := models.FormFields(req.Record)
			if err != nil {
				return err
			}
			return s.client.SubmitApplyForm(ctx, params.Session, fields)
		},
		Logger: s.logger.WithField("operation", "update"),
	}

	outcomes, err := updater.Process(ctx, f)
	if err != nil {
		return nil, err
	}
	result := &Result{Summary: summarize(outcomes, s.juID)}
	if failed := flow.FailedOnly(outcomes); len(failed) > 0 {
		if result.Workbook, err = flow.Assemble(s.spec.mappings, failed); err != nil {
			return nil, err
		}
	}
	return result, nil
}

var publishMappings = []flow.FieldMapping[clients.ListedItem]{
	flow.Field("juId",
		func(it clients.ListedItem) string { return it.JuID },
		func(it clients.ListedItem, v string) clients.ListedItem { it.JuID = v; return it }),
	flow.Field("商品ID/itemId",
		func(it clients.ListedItem) string { return it.ItemID },
		func(it clients.ListedItem, v string) clients.ListedItem { it.ItemID = v; return it }),
	flow.Field("商品名称/itemName",
		func(it clients.ListedItem) string { return it.ItemName },
		func(it clients.ListedItem, v string) clients.ListedItem { it.ItemName = v; return it }),
}

// Publish publishes every listed item one at a time
func (s *PlatformService[T]) Publish(ctx context.Context, params ExportParams) (*Result, error) {
	log := s.logger.WithField("operation", "publish")

	total, err := s.totalCount(params)(ctx)
	if err != nil {
		return nil, err
	}
	log.WithField("total", total).Info("Publishing items")

	items, err := flow.FetchPages(ctx, total, s.opts.PageSize, s.opts.PageConcurrency, s.queryPage(params), log)
	if err != nil {
		return nil, err
	}

	outcomes := make([]flow.Outcome[clients.ListedItem], 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debugf("Publishing item %s (%d/%d)", it.Item.JuID, it.Index, it.Total)
		if err := s.client.PublishItem(ctx, params.Session, it.Item.JuID); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithFields(logrus.Fields{
				"index": it.Index,
				"total": it.Total,
				"error": err.Error(),
			}).Warn("Item publish failed")
			outcomes = append(outcomes, flow.Failed(it.Item, err))
			continue
		}
		outcomes = append(outcomes, flow.Succeeded(it.Item))
	}

	result := &Result{Summary: summarize(outcomes, func(it clients.ListedItem) string { return it.JuID })}
	if failed := flow.FailedOnly(outcomes); len(failed) > 0 {
		if result.Workbook, err = flow.Assemble(publishMappings, failed); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *PlatformService[T]) totalCount(params ExportParams) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		probe := flow.CountProbe()
		page, err := s.client.QueryItems(ctx, params.Session, params.Query, probe.PageIndex, probe.PageSize)
		if err != nil {
			return 0, err
		}
		return page.TotalItem, nil
	}
}

func (s *PlatformService[T]) queryPage(params ExportParams) flow.PageQuery[clients.ListedItem] {
	return func(ctx context.Context, req flow.PageRequest) (flow.PageResult[clients.ListedItem], error) {
		page, err := s.client.QueryItems(ctx, params.Session, params.Query, req.PageIndex, req.PageSize)
		if err != nil {
			return flow.PageResult[clients.ListedItem]{}, err
		}
		return flow.PageResult[clients.ListedItem]{
			PageIndex:  req.PageIndex,
			Items:      page.Items,
			TotalCount: page.TotalItem,
		}, nil
	}
}

func (s *PlatformService[T]) juID(record T) string {
	return s.spec.value(record, "juId")
}
