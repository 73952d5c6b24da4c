package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/flow"
)

// MockCampaignClient is a mock implementation of clients.CampaignClient
type MockCampaignClient struct {
	mock.Mock
}

func (m *MockCampaignClient) QueryItems(ctx context.Context, s clients.Session, q clients.ItemQuery, page, size int) (*clients.ItemsPage, error) {
	args := m.Called(ctx, s, q, page, size)
	if p := args.Get(0); p != nil {
		return p.(*clients.ItemsPage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCampaignClient) GetApplyForm(ctx context.Context, s clients.Session, juID string, fields []clients.FormField) (map[string]string, error) {
	args := m.Called(ctx, s, juID, fields)
	if f := args.Get(0); f != nil {
		return f.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCampaignClient) SubmitApplyForm(ctx context.Context, s clients.Session, form map[string]string) error {
	args := m.Called(ctx, s, form)
	return args.Error(0)
}

func (m *MockCampaignClient) UploadImage(ctx context.Context, s clients.Session, wise string, img *flow.Image) (string, error) {
	args := m.Called(ctx, s, wise, img)
	return args.String(0), args.Error(1)
}

func (m *MockCampaignClient) PublishItem(ctx context.Context, s clients.Session, juID string) error {
	args := m.Called(ctx, s, juID)
	return args.Error(0)
}

var (
	testSession = clients.Session{TbToken: "tok", Cookie2: "c2", SG: "sg"}
	testQuery   = clients.ItemQuery{ActivityEnterID: "act-1", ItemStatusCode: "0", ActionStatus: "0"}
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testOptions() Options {
	return Options{PageSize: 2, PageConcurrency: 2, DetailConcurrency: 3}
}

// buildWorkbook writes rows into the first sheet of a new xlsx
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStr(sheet, cell, v))
		}
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func readRows(t *testing.T, f *excelize.File) [][]string {
	t.Helper()
	require.NotNil(t, f)
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func cellAt(rows [][]string, r, c int) string {
	if r >= len(rows) || c >= len(rows[r]) {
		return ""
	}
	return rows[r][c]
}

// row builds a data row for titles with the given key values set
func row(titles []string, values map[string]string) []string {
	out := make([]string, len(titles))
	for i, title := range titles {
		out[i] = values[FieldKey(title)]
	}
	return out
}
