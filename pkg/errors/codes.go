package errors

import "net/http"

// Code is the stable machine-readable identifier returned to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Commerce codes surfaced by cart, coupon and order operations.
const (
	CodeInvalidQuantity         Code = "INVALID_QUANTITY"
	CodeOutOfStock              Code = "OUT_OF_STOCK"
	CodeInsufficientStock       Code = "INSUFFICIENT_STOCK"
	CodeEmptyCart               Code = "EMPTY_CART"
	CodeCouponInvalid           Code = "COUPON_INVALID"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
)

// Metadata describes how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	// Retryable marks failures a client may retry unchanged.
	Retryable bool
	// DetailsAllowed lets Error.Details reach the response body.
	DetailsAllowed bool
	// ExposeMessage replaces PublicMessage with the error's own message.
	ExposeMessage bool
}

type trait uint8

const (
	exposed trait = 1 << iota
	detailed
	retryable
)

func describe(status int, public string, traits trait) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      traits&retryable != 0,
		DetailsAllowed: traits&detailed != 0,
		ExposeMessage:  traits&exposed != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    describe(http.StatusBadRequest, "validation failed", exposed|detailed),
	CodeUnauthorized:  describe(http.StatusUnauthorized, "authentication required", exposed),
	CodeForbidden:     describe(http.StatusForbidden, "access denied", exposed),
	CodeNotFound:      describe(http.StatusNotFound, "resource not found", exposed),
	CodeConflict:      describe(http.StatusConflict, "conflict detected", exposed),
	CodeStateConflict: describe(http.StatusUnprocessableEntity, "state transition disallowed", exposed|detailed),
	CodeIdempotency:   describe(http.StatusConflict, "idempotency key reused", exposed|detailed),
	CodeRateLimit:     describe(http.StatusTooManyRequests, "rate limit exceeded", exposed),
	CodeInternal:      describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|detailed),

	CodeInvalidQuantity:         describe(http.StatusBadRequest, "invalid quantity", exposed|detailed),
	CodeOutOfStock:              describe(http.StatusUnprocessableEntity, "product out of stock", exposed|detailed),
	CodeInsufficientStock:       describe(http.StatusUnprocessableEntity, "insufficient stock", exposed|detailed),
	CodeEmptyCart:               describe(http.StatusUnprocessableEntity, "cart is empty", exposed),
	CodeCouponInvalid:           describe(http.StatusUnprocessableEntity, "coupon cannot be applied", exposed|detailed),
	CodeInvalidStatusTransition: describe(http.StatusUnprocessableEntity, "order status change not permitted", exposed|detailed),
}

// MetadataFor returns the rendering rules for code. Unknown codes render as
// internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// HTTPStatus is shorthand for MetadataFor(c).HTTPStatus.
func (c Code) HTTPStatus() int {
	return MetadataFor(c).HTTPStatus
}
