package constant

import (
	"time"
)

// Context key types to avoid collisions
type contextKey string

const (
	ContextKeyOperatorID contextKey = "operator_id"
)

const (
	RequestParamPage    = "page"
	RequestParamLimit   = "limit"
	RequestParamSortBy  = "sort_by"
	RequestParamSortDir = "sort_dir"
)

const (
	RequestParamID = "id"
)

const (
	DefaultValuePage    = 1
	DefaultValueLimit   = 10
	DefaultValueSortBy  = "created_at"
	DefaultValueSortDir = "DESC"
)

const (
	FieldCreatedAt  = "created_at"
	FieldCreatedBy  = "created_by"
	FieldModifiedAt = "modified_at"
	FieldModifiedBy = "modified_by"
)

const (
	PqErrorCodeUniqueViolation = "23505"
	PqErrorCodeFkViolation     = "23503"
)

const (
	DateFormat = time.RFC3339
)

const (
	RequestHeaderContentType        = "Content-Type"
	RequestHeaderUserAgent          = "User-Agent"
	RequestHeaderForwardedFor       = "X-Forwarded-For"
	RequestHeaderRealIP             = "X-Real-Ip"
	RequestHeaderIdempotencyKey     = "Idempotency-Key"
	RequestHeaderOperatorID         = "X-Operator-Id"
	RequestHeaderRateLimit          = "X-Ratelimit-Limit"
	RequestHeaderRateLimitRemaining = "X-Ratelimit-Remaining"
	RequestHeaderRateLimitWindow    = "X-Ratelimit-Window"
	ContentTypeJSON                 = "application/json"
)

const (
	ResponseErrorRequestLimitExceeded = "Request limit exceeded, please try again later"
	ResponseErrorPrepareShutdown      = "Server is preparing to shut down"
	ResponseErrorUnhealthy            = "Server is unhealthy"
)

const (
	OtelHandlerScopeName    = "handler"
	OtelServiceScopeName    = "service"
	OtelRepositoryScopeName = "repository"
	OtelQueryAttributeKey   = "db.query"
)

const (
	Empty = ""

	DefaultOperatorID = "system"
)

// Kafka topics for the lifecycle event stream.
const (
	TopicRentalLifecycle = "lodge.rental.lifecycle"
	TopicPaymentAccepted = "lodge.payment.accepted"
)

// Check-in payment policies.
const (
	CheckinPolicyNone    = "none"
	CheckinPolicyDeposit = "deposit"
	CheckinPolicyFull    = "full"
)
