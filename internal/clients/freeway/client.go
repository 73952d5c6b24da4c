// Package freeway talks to the "freeway" campaign back-offices (聚划算,
// 淘抢购, 淘清仓). All three share the same endpoints and session cookies and
// differ only in host and a few form details.
package freeway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/flow"
)

const (
	queryItemsPath  = "/tg/json/queryItems.htm"
	applyFormPath   = "/tg/itemApplyFormDetail.htm"
	submitPath      = "/tg/itemApplyResult.htm"
	uploadImagePath = "/tg/json/uploadImageLocal.do"
	publishPath     = "/tg/ItemPublishError"

	submitAction = "/tg/ItemPostAction"
)

// Config configures one back-office client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, <= 0 disables limiting
	RateBurst int
	Retry     *clients.RetryConfig

	// SubmitExtras are added to every apply form submission.
	SubmitExtras map[string]string
	// SubmitBlank sends blank fields too, so a cleared cell clears the form field.
	SubmitBlank bool

	HTTPClient *http.Client
}

// Client implements clients.CampaignClient for one back-office host
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	noRedirect   *http.Client
	rateLimiter  *rate.Limiter
	retrier      *clients.Retrier
	submitExtras map[string]string
	submitBlank  bool
}

var _ clients.CampaignClient = (*Client)(nil)

// NewClient creates a back-office client
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	noRedirect := *httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		baseURL:      base,
		httpClient:   httpClient,
		noRedirect:   &noRedirect,
		rateLimiter:  rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		retrier:      clients.NewRetrier(cfg.Retry, clients.NewCircuitBreaker(10, 30*time.Second)),
		submitExtras: cfg.SubmitExtras,
		submitBlank:  cfg.SubmitBlank,
	}, nil
}

// BaseURL returns the back-office root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type queryItemsResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PageSize  int    `json:"pageSize"`
	TotalItem int    `json:"totalItem"`
	ItemList  []struct {
		JuID     flexString `json:"juId"`
		ItemID   flexString `json:"itemId"`
		ItemName string     `json:"itemName"`
	} `json:"itemList"`
}

// QueryItems lists one page of an activity's items
func (c *Client) QueryItems(ctx context.Context, s clients.Session, q clients.ItemQuery, page, size int) (*clients.ItemsPage, error) {
	params := url.Values{}
	params.Set("_input_charset", "UTF-8")
	params.Set("_tb_token_", s.TbToken)
	params.Set("activityEnterId", q.ActivityEnterID)
	params.Set("itemStatusCode", q.ItemStatusCode)
	params.Set("actionStatus", q.ActionStatus)
	params.Set("currentPage", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(size))

	body, err := c.getBody(ctx, "query items", s, queryItemsPath, params)
	if err != nil {
		return nil, err
	}

	var resp queryItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, remote("query items", fmt.Errorf("unexpected response: %s", snippet(body)))
	}
	if !resp.Success {
		return nil, remote("query items", errors.New(orDefault(resp.Message, "query items failed")))
	}

	out := &clients.ItemsPage{PageSize: resp.PageSize, TotalItem: resp.TotalItem}
	for _, it := range resp.ItemList {
		out.Items = append(out.Items, clients.ListedItem{
			JuID:     string(it.JuID),
			ItemID:   string(it.ItemID),
			ItemName: it.ItemName,
		})
	}
	return out, nil
}

// GetApplyForm scrapes the named fields out of an item's apply form
func (c *Client) GetApplyForm(ctx context.Context, s clients.Session, juID string, fields []clients.FormField) (map[string]string, error) {
	params := url.Values{}
	params.Set("_input_charset", "UTF-8")
	params.Set("juId", juID)

	resp, err := c.get(ctx, "get apply form", s, c.endpoint(applyFormPath, params), true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remote("get apply form", fmt.Errorf("Invalid item %s", juID))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, remote("get apply form", fmt.Errorf("Invalid item %s: %w", juID, err))
	}
	form := doc.Find("#J_DetailForm")
	if form.Length() == 0 {
		return nil, remote("get apply form", fmt.Errorf("Invalid item %s: apply form not found", juID))
	}
	return ScrapeForm(form, fields), nil
}

type submitResponse struct {
	Success   bool   `json:"success"`
	ErrorType string `json:"errorType"`
	ErrorInfo string `json:"errorInfo"`
}

// SubmitApplyForm posts an apply form. Submissions are never retried.
func (c *Client) SubmitApplyForm(ctx context.Context, s clients.Session, form map[string]string) error {
	fields := make(map[string]string, len(form)+len(c.submitExtras)+3)
	for k, v := range form {
		if c.submitBlank || strings.TrimSpace(v) != "" {
			fields[k] = v
		}
	}
	for k, v := range c.submitExtras {
		fields[k] = v
	}
	fields["action"] = submitAction
	fields["event_submit_do_update"] = "true"
	fields["_tb_token_"] = s.TbToken

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range sortedKeys(fields) {
		if err := w.WriteField(k, fields[k]); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("action", submitAction)
	params.Set("event_submit_do_update", "true")
	params.Set("_input_charset", "UTF-8")

	body, err := c.post(ctx, "submit apply form", s, submitPath, params, w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return remote("submit apply form", fmt.Errorf("unexpected response: %s", snippet(body)))
	}
	if !resp.Success {
		return remote("submit apply form", errors.New(orDefault(resp.ErrorInfo, orDefault(resp.ErrorType, "submit failed"))))
	}
	return nil
}

type uploadResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// UploadImage uploads an image for the form slot described by wise
func (c *Client) UploadImage(ctx context.Context, s clients.Session, wise string, img *flow.Image) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("wise", wise); err != nil {
		return "", err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="itemPicFile"; filename="%s"`, escapeQuotes(img.Filename)))
	h.Set("Content-Type", img.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("_input_charset", "utf-8")
	body, err := c.post(ctx, "upload image", s, uploadImagePath, params, w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", remote("upload image", fmt.Errorf("unexpected response: %s", snippet(body)))
	}
	if resp.Status != 1 || resp.URL == "" {
		return "", remote("upload image", errors.New(orDefault(resp.Message, "upload failed")))
	}
	return resp.URL, nil
}

// PublishItem triggers publishing of one item. The back-office answers with
// a redirect on success, a redirect to a seller_error page when the seller is
// blocked, or a page listing the blocking problems.
func (c *Client) PublishItem(ctx context.Context, s clients.Session, juID string) error {
	params := url.Values{}
	params.Set("juid", juID)
	params.Set("_tb_token_", s.TbToken)

	resp, err := c.get(ctx, "publish item", s, c.endpoint(publishPath, params), false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location, err := resp.Location()
		if err != nil || !strings.Contains(location.String(), "seller_error") {
			return nil
		}
		return c.sellerError(ctx, s, location.String())

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return remote("publish item", err)
		}
		var problems []string
		doc.Find(".exception_main_info tbody tr").Each(func(_ int, row *goquery.Selection) {
			if text := strings.TrimSpace(row.Find("td").First().Text()); text != "" {
				problems = append(problems, text)
			}
		})
		return remote("publish item", errors.New(orDefault(strings.Join(problems, ", "), "发布失败")))
	}
	return remote("publish item", fmt.Errorf("unexpected status %d", resp.StatusCode))
}

func (c *Client) sellerError(ctx context.Context, s clients.Session, location string) error {
	resp, err := c.get(ctx, "publish item", s, location, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return remote("publish item", err)
	}
	return remote("publish item", errors.New(orDefault(strings.TrimSpace(doc.Find(".state-notice").Text()), "seller_error")))
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(params) > 0 {
		// keep the raw action path readable, the back-office expects it unescaped
		u.RawQuery = strings.ReplaceAll(params.Encode(), "%2F", "/")
	}
	return u.String()
}

// get performs a session GET. Retried requests go through the retrier; the
// caller owns the response body.
func (c *Client) get(ctx context.Context, op string, s clients.Session, target string, retry bool) (*http.Response, error) {
	roundTrip := func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		addSession(req, s)
		if retry {
			return c.httpClient.Do(req)
		}
		return c.noRedirect.Do(req)
	}

	var (
		resp *http.Response
		err  error
	)
	if retry {
		resp, err = c.retrier.Do(ctx, op, roundTrip)
	} else {
		resp, err = roundTrip(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, remote(op, err)
	}
	return resp, nil
}

func (c *Client) getBody(ctx context.Context, op string, s clients.Session, path string, params url.Values) ([]byte, error) {
	resp, err := c.get(ctx, op, s, c.endpoint(path, params), true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readOK(op, resp)
}

func (c *Client) post(ctx context.Context, op string, s clients.Session, path string, params url.Values, contentType string, body []byte) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, params), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	addSession(req, s)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, remote(op, err)
	}
	defer resp.Body.Close()
	return readOK(op, resp)
}

func readOK(op string, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, remote(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remote(op, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body)))
	}
	return body, nil
}

func addSession(req *http.Request, s clients.Session) {
	req.AddCookie(&http.Cookie{Name: "_tb_token_", Value: s.TbToken})
	req.AddCookie(&http.Cookie{Name: "cookie2", Value: s.Cookie2})
	req.AddCookie(&http.Cookie{Name: "sg", Value: s.SG})
}

func remote(op string, err error) error {
	return &flow.RemoteError{Op: op, Err: err}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// flexString accepts both JSON strings and numbers. Numeric ids keep their
// exact digits.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("invalid id %s", raw)
		}
		*f = flexString(raw)
	}
	return nil
}
