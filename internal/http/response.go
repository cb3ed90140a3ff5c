package http

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format. Keys and values are
// hex encoded.
type Response struct {
	Status   Status `json:"status,omitempty"`
	Value    string `json:"value,omitempty"`
	Previous string `json:"previous,omitempty"`
	// Replaced is set when a write overwrote or removed a live key.
	Replaced bool   `json:"replaced,omitempty"`
	Error    string `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewValueResponse(value string) Response {
	return Response{Status: StatusSuccess, Value: value}
}

func NewPreviousResponse(previous string) Response {
	return Response{Status: StatusSuccess, Previous: previous, Replaced: true}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}

// BatchRecord is one mutation of a batch request. A record without a value
// must set Delete.
type BatchRecord struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Delete bool   `json:"delete,omitempty"`
}

// BatchRequest is the body of POST /api/batch.
type BatchRequest struct {
	Records []BatchRecord `json:"records"`
}
