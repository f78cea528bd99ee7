package database

import "time"

// Exchange is one persisted question/answer pair.
type Exchange struct {
	ID               int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationID   *string `gorm:"column:conversation_id;type:varchar(128);index" json:"conversation_id"`
	Question         string  `gorm:"column:question;type:text;not null" json:"question"`
	Answer           string  `gorm:"column:answer;type:text;not null" json:"answer"`
	Sources          string  `gorm:"column:sources;type:text" json:"sources"`
	DocumentsFound   int     `gorm:"column:documents_found" json:"documents_found"`
	HighestScore     float64 `gorm:"column:highest_score" json:"highest_score"`
	AvgScore         float64 `gorm:"column:avg_score" json:"avg_score"`
	SearchSuccessful bool    `gorm:"column:search_successful" json:"search_successful"`
	Reason           string  `gorm:"column:reason;type:varchar(1024)" json:"reason,omitempty"`
	LatencyMs        int64   `gorm:"column:latency_ms" json:"latency_ms"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Exchange) TableName() string { return "chat_exchanges" }
