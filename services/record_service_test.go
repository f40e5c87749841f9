package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/changeling/models"
)

type fakeDB struct {
	saved   []models.GameRecord
	saveErr error
}

func (f *fakeDB) SaveGameRecord(_ context.Context, rec models.GameRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeDB) ListGameRecords(_ context.Context, roomID string, _ int) ([]models.GameRecord, error) {
	var out []models.GameRecord
	for _, r := range f.saved {
		if roomID == "" || r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDB) Close() error { return nil }

func TestRecordService_WithDatabase(t *testing.T) {
	db := &fakeDB{}
	s := NewRecordService(db)
	var seen int
	s.OnRecord(func(models.GameRecord) { seen++ })

	s.Record(context.Background(), models.GameRecord{RoomID: "AAAAA", Outcome: models.OutcomeInnocentVictory})
	require.Len(t, db.saved, 1)
	assert.Equal(t, 1, seen)

	got, err := s.History(context.Background(), "AAAAA", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecordService_DatabaseFailureIsLogged(t *testing.T) {
	s := NewRecordService(&fakeDB{saveErr: errors.New("down")})
	s.Record(context.Background(), models.GameRecord{RoomID: "AAAAA"})
}

func TestRecordService_InMemoryHistory(t *testing.T) {
	s := NewRecordService(nil)
	ctx := context.Background()
	for _, id := range []string{"AAAAA", "BBBBB", "AAAAA"} {
		s.Record(ctx, models.GameRecord{RoomID: id})
	}

	all, err := s.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := s.History(ctx, "AAAAA", 1)
	require.NoError(t, err)
	assert.Len(t, onlyA, 1)

	for i := 0; i < recentCapacity+10; i++ {
		s.Record(ctx, models.GameRecord{RoomID: "CCCCC"})
	}
	assert.Len(t, s.recent, recentCapacity)
}
