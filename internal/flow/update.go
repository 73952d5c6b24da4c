package flow

import (
	"bytes"
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// UploadTask carries one image-valued field of a record to the uploader.
type UploadTask[T any] struct {
	Owner   T
	Mapping FieldMapping[T]
	Image   *Image
}

// SubmitRequest carries one parsed record to the remote form.
type SubmitRequest[T any] struct {
	Index  int // 1-based row position among parsed records
	Total  int
	Record T
}

// Updater reads a workbook of records, uploads referenced images, submits
// every record one at a time and reports the rows that failed.
type Updater[T any] struct {
	Mappings    []FieldMapping[T]
	Empty       T
	Images      ImageSource
	UploadImage func(ctx context.Context, task UploadTask[T]) (string, error)
	Submit      func(ctx context.Context, req SubmitRequest[T]) error
	Logger      *logrus.Entry
}

// Update processes f and returns a workbook of failed rows only, or nil when
// every record went through.
func (u *Updater[T]) Update(ctx context.Context, f *excelize.File) (*excelize.File, error) {
	outcomes, err := u.Process(ctx, f)
	if err != nil {
		return nil, err
	}
	failed := FailedOnly(outcomes)
	if len(failed) == 0 {
		return nil, nil
	}
	return Assemble(u.Mappings, failed)
}

// Process validates and parses f, then handles each record in row order.
// A title mismatch fails before any record is touched.
func (u *Updater[T]) Process(ctx context.Context, f *excelize.File) ([]Outcome[T], error) {
	log := entryOrDefault(u.Logger)

	rows, err := ReadRows(f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, Validationf("Excel 格式错误: 缺少标题行")
	}
	if err := ValidateTitles(u.Mappings, rows[0]); err != nil {
		return nil, err
	}
	records := ParseRecords(u.Mappings, u.Empty, rows[1:])
	log.WithField("total", len(records)).Info("Updating records")

	outcomes := make([]Outcome[T], 0, len(records))
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debugf("Updating record %d/%d", i+1, len(records))

		updated, err := u.uploadImages(ctx, record)
		if err == nil {
			err = u.Submit(ctx, SubmitRequest[T]{Index: i + 1, Total: len(records), Record: updated})
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithFields(logrus.Fields{
				"index": i + 1,
				"total": len(records),
				"error": err.Error(),
			}).Warn("Record update failed")
			outcomes = append(outcomes, Failed(record, asRemote("submit", err)))
			continue
		}
		outcomes = append(outcomes, Succeeded(updated))
	}
	return outcomes, nil
}

// uploadImages replaces every image reference of record with the uploaded
// value, in mapping order.
func (u *Updater[T]) uploadImages(ctx context.Context, record T) (T, error) {
	for _, m := range u.Mappings {
		value := m.Get(record)
		if !IsImageReference(value) {
			continue
		}
		if u.Images == nil || u.UploadImage == nil {
			return record, Validationf("字段 %s 不支持上传图片", m.Name)
		}
		img, err := u.Images.Resolve(ctx, value)
		if err != nil {
			return record, err
		}
		uploaded, err := u.UploadImage(ctx, UploadTask[T]{Owner: record, Mapping: m, Image: img})
		if err != nil {
			return record, asRemote("upload image", err)
		}
		record = m.Set(record, uploaded)
	}
	return record, nil
}

// ReadRows returns the raw cell text of the first sheet. Numeric cells keep
// their stored representation.
func ReadRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, Validationf("Excel 格式错误: 没有工作表")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, Validationf("Excel 格式错误: %v", err)
	}
	return rows, nil
}

// ValidateTitles checks that titles matches the mapping names exactly and in
// order, with no further non-empty titles.
func ValidateTitles[T any](mappings []FieldMapping[T], titles []string) error {
	for i, m := range mappings {
		if i >= len(titles) || titles[i] != m.Name {
			return Validationf("Excel 格式错误: 第%d列应该是 %s", i+1, m.Name)
		}
	}
	for i := len(mappings); i < len(titles); i++ {
		if strings.TrimSpace(titles[i]) != "" {
			return Validationf("Excel 格式错误: 第%d列 %s 不是有效的列", i+1, titles[i])
		}
	}
	return nil
}

// ParseRecords folds each data row over empty. Empty or missing cells keep
// the empty value, and rows with no text at all are skipped. Cells past the
// last mapping, such as the message column of a failure report, are ignored.
func ParseRecords[T any](mappings []FieldMapping[T], empty T, rows [][]string) []T {
	var records []T
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		record := empty
		for col, m := range mappings {
			if col >= len(row) || row[col] == "" {
				continue
			}
			record = m.Set(record, row[col])
		}
		records = append(records, record)
	}
	return records
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// OpenWorkbook reads an xlsx payload.
func OpenWorkbook(data []byte) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, Validationf("Excel 格式错误: 无法打开文件 (%v)", err)
	}
	return f, nil
}
