// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/changeling/models"
)

// Database 对局归档接口
type Database interface {
	SaveGameRecord(ctx context.Context, rec models.GameRecord) error
	// ListGameRecords returns the newest records first. An empty roomID
	// lists every room.
	ListGameRecords(ctx context.Context, roomID string, limit int) ([]models.GameRecord, error)
	Close() error
}

const DefaultListLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func dsn(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}
