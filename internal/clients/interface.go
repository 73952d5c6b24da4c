package clients

import (
	"context"

	"campaign-sheet-service/internal/flow"
)

// CampaignClient is what the sheet flows need from a campaign back-office
type CampaignClient interface {
	// QueryItems lists the items enrolled in an activity. Size 0 only counts.
	QueryItems(ctx context.Context, s Session, q ItemQuery, page, size int) (*ItemsPage, error)

	// GetApplyForm scrapes the apply form of one enrolled item
	GetApplyForm(ctx context.Context, s Session, juID string, fields []FormField) (map[string]string, error)

	// SubmitApplyForm posts an edited apply form
	SubmitApplyForm(ctx context.Context, s Session, form map[string]string) error

	// UploadImage stores an image for a form field and returns its URL
	UploadImage(ctx context.Context, s Session, wise string, img *flow.Image) (string, error)

	// PublishItem asks the back-office to publish an item
	PublishItem(ctx context.Context, s Session, juID string) error
}

// Session is the cookie set of a logged-in back-office user
type Session struct {
	TbToken string
	Cookie2 string
	SG      string
}

// ItemQuery selects the items of one activity
type ItemQuery struct {
	ActivityEnterID string
	ItemStatusCode  string
	ActionStatus    string
}

// ListedItem is one row of an item listing
type ListedItem struct {
	JuID     string
	ItemID   string
	ItemName string
}

// ItemsPage is one page of an item listing
type ItemsPage struct {
	PageSize  int
	TotalItem int
	Items     []ListedItem
}

// FieldKind says how a form field value is read from the apply form page
type FieldKind int

const (
	// FieldValue reads the value attribute of the first match
	FieldValue FieldKind = iota
	// FieldChecked reads the value of the checked match only
	FieldChecked
	// FieldCheckedOrValue prefers the checked match, then any match
	FieldCheckedOrValue
	// FieldText reads the text content
	FieldText
	// FieldNextPrimary reads the .c-primary text right after the match
	FieldNextPrimary
)

// FormField tells the scraper where one field lives inside the apply form
type FormField struct {
	Name     string
	Selector string
	Kind     FieldKind
}
