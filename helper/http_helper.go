package helper

import (
	"errors"
	"net/http"

	"tabforum/models"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"gopkg.in/go-playground/validator.v9"
)

const (
	textError             = `error`
	textOk                = `ok`
	codeSuccess           = 200
	codeBadRequestError   = 400
	codeUnauthorizedError = 401
	codeForbiddenError    = 403
	codeNotFound          = 404
	codeValidationError   = 422
	codeInternalError     = 500
)

// ResponseHelper ...
type ResponseHelper struct {
	C        *gin.Context
	Status   string
	Message  string
	Data     interface{}
	Code     int // not the http code
	CodeType string
}

// HTTPHelper ...
type HTTPHelper struct {
	Validate   *validator.Validate
	Translator ut.Translator
}

// GetStatusCode maps a domain error to its HTTP status.
func (u *HTTPHelper) GetStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var validationErr *models.ValidationError
	var notFoundErr *models.NotFoundError
	var forbiddenErr *models.ForbiddenError
	var unauthorizedErr *models.UnauthorizedError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &forbiddenErr):
		return http.StatusForbidden
	case errors.As(err, &unauthorizedErr):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// SetResponse ...
// Set response data.
func (u *HTTPHelper) SetResponse(c *gin.Context, status string, message string, data interface{}, code int, codeType string) ResponseHelper {
	return ResponseHelper{c, status, message, data, code, codeType}
}

// SendError ...
// Send error response to consumers.
func (u *HTTPHelper) SendError(c *gin.Context, message string, data interface{}, code int, codeType string) error {
	res := u.SetResponse(c, textError, message, data, code, codeType)

	return u.SendResponse(res)
}

// SendDomainError ...
// Send a service-layer error with its mapped status and machine-readable
// payload (location code, offending key).
func (u *HTTPHelper) SendDomainError(c *gin.Context, err error) error {
	statusCode := u.GetStatusCode(err)

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(statusCode, map[string]interface{}{
			"code":         statusCode,
			"code_type":    `validationError`,
			"code_message": validationErr.Message,
			"data": map[string]interface{}{
				"action":              validationErr.Action,
				"error_location_code": validationErr.ErrorLocationCode,
				"key":                 validationErr.Key,
			},
		})
		return nil
	}

	var notFoundErr *models.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(statusCode, map[string]interface{}{
			"code":         statusCode,
			"code_type":    `notFound`,
			"code_message": notFoundErr.Message,
			"data": map[string]interface{}{
				"action":              notFoundErr.Action,
				"error_location_code": notFoundErr.ErrorLocationCode,
			},
		})
		return nil
	}

	var forbiddenErr *models.ForbiddenError
	if errors.As(err, &forbiddenErr) {
		c.JSON(statusCode, map[string]interface{}{
			"code":         statusCode,
			"code_type":    `forbidden`,
			"code_message": forbiddenErr.Message,
			"data": map[string]interface{}{
				"action":              forbiddenErr.Action,
				"error_location_code": forbiddenErr.ErrorLocationCode,
			},
		})
		return nil
	}

	var unauthorizedErr *models.UnauthorizedError
	if errors.As(err, &unauthorizedErr) {
		return u.SendUnauthorizedError(c, unauthorizedErr.Message, u.EmptyJsonMap())
	}

	return u.SendError(c, err.Error(), u.EmptyJsonMap(), statusCode, `internalError`)
}

// SendBadRequest ...
// Send bad request response to consumers.
func (u *HTTPHelper) SendBadRequest(c *gin.Context, message string, data interface{}) error {
	res := u.SetResponse(c, textError, message, data, codeBadRequestError, `badRequest`)

	return u.SendResponse(res)
}

// SendValidationError ...
// Send validation error response to consumers.
func (u *HTTPHelper) SendValidationError(c *gin.Context, validationErrors validator.ValidationErrors) error {
	errorResponse := map[string][]string{}
	errorTranslation := validationErrors.Translate(u.Translator)
	for _, err := range validationErrors {
		errKey := Underscore(err.Field())
		errorResponse[errKey] = append(errorResponse[errKey], errorTranslation[err.Namespace()])
	}

	c.JSON(http.StatusBadRequest, map[string]interface{}{
		"code":         codeValidationError,
		"code_type":    `validationError`,
		"code_message": errorResponse,
		"data":         u.EmptyJsonMap(),
	})
	return nil
}

// SendUnauthorizedError ...
// Send unauthorized response to consumers.
func (u *HTTPHelper) SendUnauthorizedError(c *gin.Context, message string, data interface{}) error {
	res := u.SetResponse(c, textError, message, data, codeUnauthorizedError, `unAuthorized`)

	return u.SendResponse(res)
}

// SendNotFoundError ...
// Send not found response to consumers.
func (u *HTTPHelper) SendNotFoundError(c *gin.Context, message string, data interface{}) error {
	res := u.SetResponse(c, textError, message, data, codeNotFound, `notFound`)

	return u.SendResponse(res)
}

// SendSuccess ...
// Send success response to consumers.
func (u *HTTPHelper) SendSuccess(c *gin.Context, message string, data interface{}) error {
	res := u.SetResponse(c, textOk, message, data, codeSuccess, `success`)

	return u.SendResponse(res)
}

// SendCreated ...
// Send created response to consumers.
func (u *HTTPHelper) SendCreated(c *gin.Context, message string, data interface{}) error {
	if len(message) == 0 {
		message = `success`
	}

	c.JSON(http.StatusCreated, map[string]interface{}{
		"code":         http.StatusCreated,
		"code_type":    `created`,
		"code_message": message,
		"data":         data,
	})
	return nil
}

// SendResponse ...
// Send response
func (u *HTTPHelper) SendResponse(res ResponseHelper) error {
	if len(res.Message) == 0 {
		res.Message = `success`
	}

	var resCode int
	switch res.Code {
	case codeSuccess:
		resCode = http.StatusOK
	case codeUnauthorizedError:
		resCode = http.StatusUnauthorized
	case codeForbiddenError:
		resCode = http.StatusForbidden
	case codeNotFound:
		resCode = http.StatusNotFound
	case codeInternalError:
		resCode = http.StatusInternalServerError
	default:
		resCode = http.StatusBadRequest
	}

	res.C.JSON(resCode, map[string]interface{}{
		"code":         res.Code,
		"code_type":    res.CodeType,
		"code_message": res.Message,
		"data":         res.Data,
	})
	return nil
}

func (u *HTTPHelper) EmptyJsonMap() map[string]interface{} {
	return make(map[string]interface{})
}
