package status

// ErrorCode is a numeric code to classify API errors in a stable way
type ErrorCode int

// Reserved ranges by domain:
//   1000-1999: Chat
//   2000-2999: Documents (ingest, upload)
//   3000-3999: Retriever
//   4000-4999: Conversations
//   5000-5999: Health
// Within a range, client errors start at *000 and internal errors at *500.

// Chat error codes (1000-1999)
const (
	ChatInvalidRequestBody ErrorCode = 1000 + iota // 1000
	ChatMissingMessage                             // 1001
)

const (
	ChatInternal ErrorCode = 1500 + iota // 1500
)

// Documents error codes (2000-2999)
const (
	DocumentsInvalidRequestBody ErrorCode = 2000 + iota // 2000
	DocumentsMissingFile                                // 2001
	DocumentsUnsupportedFormat                          // 2002
	DocumentsInvalidDocument                            // 2003
)

const (
	DocumentsInternal      ErrorCode = 2500 + iota // 2500
	DocumentsArchiveFailed                         // 2501
	DocumentsIngestFailed                          // 2502
)

// Retriever error codes (3000-3999)
const (
	RetrieverMissingQuery ErrorCode = 3000 + iota // 3000
	RetrieverInvalidTopK                          // 3001
)

const (
	RetrieverSearchFailed ErrorCode = 3500 + iota // 3500
)

// Conversations error codes (4000-4999)
const (
	ConversationNotFound ErrorCode = 4000 + iota // 4000
)

const (
	ConversationsDisabled ErrorCode = 4500 + iota // 4500
	ConversationsLookupFailed                     // 4501
)

// Health error codes (5000-5999)
const (
	HealthDatabaseDown ErrorCode = 5500 + iota // 5500
	HealthMilvusDown                           // 5501
)

// Deprecated: prefer domain-specific internal codes above
const (
	ErrorCodeInternal ErrorCode = 9000
)

// CodedError represents an error with an associated ErrorCode
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

type codedError struct {
	code ErrorCode
	err  error
}

func (e codedError) Error() string        { return e.err.Error() }
func (e codedError) Unwrap() error        { return e.err }
func (e codedError) ErrorCode() ErrorCode { return e.code }

// New creates a new CodedError with the given code and underlying error
func New(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return codedError{code: code, err: err}
}
