package models

// SessionCredentials are the back-office session cookies forwarded to the
// freeway endpoints.
type SessionCredentials struct {
	TbToken string `json:"tbToken" form:"tbToken" binding:"required"`
	Cookie2 string `json:"cookie2" form:"cookie2" binding:"required"`
	SG      string `json:"sg" form:"sg" binding:"required"`
}

// ExportRequest selects the items listed in an export
type ExportRequest struct {
	SessionCredentials
	ActivityEnterID string `json:"activityEnterId" form:"activityEnterId" binding:"required"`
	ItemStatusCode  string `json:"itemStatusCode" form:"itemStatusCode"`
	ActionStatus    string `json:"actionStatus" form:"actionStatus"`
}

// UpdateRequest carries the session for a workbook upload. The workbook and
// optional image archive come in as multipart files.
type UpdateRequest struct {
	SessionCredentials
}

// PublishRequest selects the items to publish
type PublishRequest struct {
	ExportRequest
}

// OperationListParams filters the operation history
type OperationListParams struct {
	Platform string `form:"platform"`
	Kind     string `form:"kind"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// ListResponse is a page of results
type ListResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrevious"`
}
