// services/record_service.go
package services

import (
	"context"
	"sync"

	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/persistence"
)

const recentCapacity = 100

// RecordService 对局归档。数据库未配置时只保留最近的对局。
type RecordService struct {
	db       persistence.Database
	onRecord func(models.GameRecord)

	mutex  sync.Mutex
	recent []models.GameRecord
}

// NewRecordService accepts a nil db.
func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// OnRecord registers a hook that sees every archived record.
func (s *RecordService) OnRecord(fn func(models.GameRecord)) {
	s.onRecord = fn
}

// Record archives a finished game. Database failures are logged, not
// returned: the game itself has already ended.
func (s *RecordService) Record(ctx context.Context, rec models.GameRecord) {
	s.mutex.Lock()
	s.recent = append(s.recent, rec)
	if len(s.recent) > recentCapacity {
		s.recent = s.recent[len(s.recent)-recentCapacity:]
	}
	s.mutex.Unlock()

	if s.onRecord != nil {
		s.onRecord(rec)
	}
	if s.db == nil {
		return
	}
	if err := s.db.SaveGameRecord(ctx, rec); err != nil {
		logger.Log.Errorf("Failed to archive game of room %s: %v", rec.RoomID, err)
		return
	}
	logger.Log.Debugf("Archived game of room %s (%s)", rec.RoomID, rec.Outcome)
}

// History returns finished games, newest first.
func (s *RecordService) History(ctx context.Context, roomID string, limit int) ([]models.GameRecord, error) {
	if s.db != nil {
		return s.db.ListGameRecords(ctx, roomID, limit)
	}
	if limit <= 0 || limit > persistence.DefaultListLimit {
		limit = persistence.DefaultListLimit
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	var out []models.GameRecord
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		if roomID == "" || s.recent[i].RoomID == roomID {
			out = append(out, s.recent[i])
		}
	}
	return out, nil
}
