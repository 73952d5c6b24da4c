package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"campaign-sheet-service/internal/archive"
	"campaign-sheet-service/internal/flow"
)

const (
	articleNoTitle      = "Article No"
	articleImageDir     = "素材图/"
	articleErrorsEntry  = "ErrorArticleNo.xlsx"
	defaultArticleImage = "http://pic.shopadidas.cn/product/%s/touming.png"
)

var articleMappings = []flow.FieldMapping[string]{
	flow.Field(articleNoTitle,
		func(no string) string { return no },
		func(_ string, v string) string { return v }),
}

// ArticleImageService downloads the transparent product picture of every
// article number listed in a workbook.
type ArticleImageService struct {
	images      flow.ImageSource
	urlTemplate string
	concurrency int
	logger      *logrus.Entry
}

// NewArticleImageService creates the article image service. urlTemplate holds
// one %s for the article number. Pictures over maxImageSize bytes fail.
func NewArticleImageService(client *http.Client, urlTemplate string, concurrency int, maxImageSize int64, logger *logrus.Logger) *ArticleImageService {
	if urlTemplate == "" {
		urlTemplate = defaultArticleImage
	}
	return &ArticleImageService{
		images:      &flow.ImageResolver{HTTPClient: client, MaxBytes: maxImageSize},
		urlTemplate: urlTemplate,
		concurrency: max(concurrency, 1),
		logger:      logger.WithField("component", "article-images"),
	}
}

// ArticleNumbers reads the non-blank article numbers below the title cell
func ArticleNumbers(workbook []byte) ([]string, error) {
	f, err := flow.OpenWorkbook(workbook)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := flow.ReadRows(f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] != articleNoTitle {
		return nil, flow.Validationf("Excel 格式错误: 第1列应该是 %s", articleNoTitle)
	}

	var numbers []string
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if no := strings.TrimSpace(row[0]); no != "" {
			numbers = append(numbers, no)
		}
	}
	return numbers, nil
}

// Download returns a zip of the downloaded pictures. Articles whose picture
// could not be fetched are listed in an error workbook inside the zip.
func (s *ArticleImageService) Download(ctx context.Context, workbook []byte) ([]byte, *Summary, error) {
	numbers, err := ArticleNumbers(workbook)
	if err != nil {
		return nil, nil, err
	}
	outcomes, images, err := s.fetchAll(ctx, numbers)
	if err != nil {
		return nil, nil, err
	}

	var entries []archive.Entry
	for i, img := range images {
		if img != nil {
			entries = append(entries, archive.Entry{Name: articleImageDir + numbers[i] + ".png", Data: img.Data})
		}
	}
	if failed := flow.FailedOnly(outcomes); len(failed) > 0 {
		report, err := flow.Assemble(articleMappings, failed)
		if err != nil {
			return nil, nil, err
		}
		data, err := flow.WorkbookBytes(report)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, archive.Entry{Name: articleErrorsEntry, Data: data})
	}

	data, err := archive.Build(entries)
	if err != nil {
		return nil, nil, err
	}
	return data, summarize(outcomes, func(no string) string { return no }), nil
}

// fetchAll downloads with bounded concurrency and keeps results in input order
func (s *ArticleImageService) fetchAll(ctx context.Context, numbers []string) ([]flow.Outcome[string], []*flow.Image, error) {
	outcomes := make([]flow.Outcome[string], len(numbers))
	images := make([]*flow.Image, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.concurrency))
	for i, no := range numbers {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			url := fmt.Sprintf(s.urlTemplate, no)
			s.logger.Debugf("Downloading %d/%d (%s)", i+1, len(numbers), url)
			img, err := s.images.Resolve(gctx, url)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.WithFields(logrus.Fields{
					"article_no": no,
					"error":      err.Error(),
				}).Warn("Article image download failed")
				outcomes[i] = flow.Failed(no, err)
				return nil
			}
			images[i] = img
			outcomes[i] = flow.Succeeded(no)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return outcomes, images, nil
}
