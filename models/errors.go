package models

// Domain error taxonomy. Services return these; handlers translate them to
// HTTP responses through the helper package. Anything else bubbles up
// unchanged as an internal error.

type ValidationError struct {
	Message           string `json:"message"`
	Action            string `json:"action,omitempty"`
	ErrorLocationCode string `json:"error_location_code,omitempty"`
	Key               string `json:"key,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

type NotFoundError struct {
	Message           string `json:"message"`
	Action            string `json:"action,omitempty"`
	ErrorLocationCode string `json:"error_location_code,omitempty"`
}

func (e *NotFoundError) Error() string {
	return e.Message
}

type ForbiddenError struct {
	Message           string `json:"message"`
	Action            string `json:"action,omitempty"`
	ErrorLocationCode string `json:"error_location_code,omitempty"`
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

type UnauthorizedError struct {
	Message string `json:"message"`
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}
