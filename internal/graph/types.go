package graph

// ObjectLookup is the response to `?id=<url>`.
type ObjectLookup struct {
	ID       string   `json:"id"`
	OGObject OGObject `json:"og_object"`
}

// OGObject is the Open Graph object behind a URL.
type OGObject struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Profile identifies a user or page.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LikeSummary is the `summary` member of a likes edge.
type LikeSummary struct {
	TotalCount int64 `json:"total_count"`
	HasLiked   bool  `json:"has_liked"`
	CanLike    bool  `json:"can_like"`
}

// LikesResponse is the response to `<id>/likes?summary=true`.
type LikesResponse struct {
	Data    []Profile    `json:"data"`
	Summary *LikeSummary `json:"summary,omitempty"`
}

// SuccessResponse is returned by publishing calls.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// Comment is one entry of a comments edge.
type Comment struct {
	ID          string  `json:"id"`
	Message     string  `json:"message"`
	From        Profile `json:"from"`
	CreatedTime string  `json:"created_time"`
}

// Cursors are the opaque paging positions.
type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Paging holds absolute URLs for neighbouring pages. Either may be empty.
type Paging struct {
	Cursors  Cursors `json:"cursors"`
	Previous string  `json:"previous,omitempty"`
	Next     string  `json:"next,omitempty"`
}

// CommentsResponse is the response to `<id>/comments`.
type CommentsResponse struct {
	Data   []Comment `json:"data"`
	Paging Paging    `json:"paging"`
}

// ErrorBody is the envelope the provider uses for failures.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the `error` member of an ErrorBody.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode,omitempty"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
}
