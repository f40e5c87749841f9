// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/changeling/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 基于 database/sql 的实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS changeling_games (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(16) NOT NULL,
            outcome VARCHAR(32) NOT NULL,
            turns INTEGER NOT NULL DEFAULT 0,
            real_turns INTEGER NOT NULL DEFAULT 0,
            players JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_changeling_games_room_id ON changeling_games(room_id);
        CREATE INDEX IF NOT EXISTS idx_changeling_games_created_at ON changeling_games(created_at);
    `)
	return err
}

// SaveGameRecord 保存对局记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, rec models.GameRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO changeling_games (room_id, outcome, turns, real_turns, players)
        VALUES ($1, $2, $3, $4, $5)
    `, rec.RoomID, string(rec.Outcome), rec.Turns, rec.RealTurns, players)
	return err
}

// ListGameRecords 查询对局历史
func (p *PostgreSQL) ListGameRecords(ctx context.Context, roomID string, limit int) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_id, outcome, turns, real_turns, players, created_at
        FROM changeling_games
        WHERE $1 = '' OR room_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, roomID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GameRecord
	for rows.Next() {
		var (
			rec     models.GameRecord
			outcome string
			players []byte
		)
		if err := rows.Scan(&rec.RoomID, &outcome, &rec.Turns, &rec.RealTurns, &players, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Outcome = models.Outcome(outcome)
		if err := json.Unmarshal(players, &rec.Players); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
