package database

import (
	"context"
	"encoding/json"
	"fmt"

	"rag-chatbot/config"
	"rag-chatbot/internal/core/chat"

	"gorm.io/gorm"
)

// Recorder stores chat exchanges in MySQL.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, ex chat.Exchange) error {
	sources, err := json.Marshal(ex.Sources)
	if err != nil {
		return err
	}
	row := Exchange{
		Question:         ex.Question,
		Answer:           ex.Answer,
		Sources:          string(sources),
		DocumentsFound:   ex.Metadata.DocumentsFound,
		HighestScore:     ex.Metadata.HighestScore,
		AvgScore:         ex.Metadata.AvgScore,
		SearchSuccessful: ex.Metadata.SearchSuccessful,
		Reason:           ex.Metadata.Reason,
		LatencyMs:        ex.Duration.Milliseconds(),
	}
	if ex.ConversationID != "" {
		id := ex.ConversationID
		row.ConversationID = &id
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%v: insert exchange: %w", config.ModuleDatabase, err)
	}
	return nil
}

// Conversation returns the latest exchanges of a conversation, oldest first.
func (r *Recorder) Conversation(ctx context.Context, conversationID string, limit int) ([]Exchange, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []Exchange
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%v: list exchanges: %w", config.ModuleDatabase, err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
