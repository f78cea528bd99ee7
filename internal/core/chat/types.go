package chat

import (
	"time"

	"rag-chatbot/internal/core/rag"
)

// SearchMetadata describes how an answer was grounded. It is recomputed per request.
type SearchMetadata struct {
	DocumentsFound         int     `json:"documents_found"`
	TotalDocumentsSearched int     `json:"total_documents_searched"`
	HighestScore           float64 `json:"highest_score"`
	AvgScore               float64 `json:"avg_score"`
	SimilarityThreshold    float64 `json:"similarity_threshold"`
	SearchSuccessful       bool    `json:"search_successful"`
	Reason                 string  `json:"reason,omitempty"`
}

// Result is the outcome of Answer.
type Result struct {
	Answer         string         `json:"response"`
	Sources        []string       `json:"sources"`
	SearchMetadata SearchMetadata `json:"search_metadata"`
}

type Request struct {
	Message        string  `json:"message" validate:"required"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// Reply is the wire shape of a chat answer; conversation_id is echoed back (null when absent).
type Reply struct {
	Response       string         `json:"response"`
	ConversationID *string        `json:"conversation_id"`
	Sources        []string       `json:"sources"`
	SearchMetadata SearchMetadata `json:"search_metadata"`
}

// Retrieval is the grounding Answer would use, without the completion.
type Retrieval struct {
	Hits                []rag.Hit `json:"hits"`
	Filtered            []rag.Hit `json:"filtered"`
	SimilarityThreshold float64   `json:"similarity_threshold"`
}

// Exchange is one question/answer pair handed to a Recorder.
type Exchange struct {
	ConversationID string
	Question       string
	Answer         string
	Sources        []string
	Metadata       SearchMetadata
	Duration       time.Duration
}
