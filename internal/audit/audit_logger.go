package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	RecordID  string    `json:"record_id"`
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogClaim(recordID, accountID string, amount int64, streak int) {
	event := Event{
		Timestamp: time.Now(),
		EventType: "CLAIM",
		RecordID:  recordID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details: map[string]int{
			"streak": streak,
		},
	}
	a.log(event)
}

func (a *Logger) LogTeamCredit(recordID, accountID, sourceUserID string, amount int64) {
	event := Event{
		Timestamp: time.Now(),
		EventType: "TEAM_CREDIT",
		RecordID:  recordID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details: map[string]string{
			"source_user_id": sourceUserID,
		},
	}
	a.log(event)
}

func (a *Logger) LogError(accountID string, err error) {
	event := Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
