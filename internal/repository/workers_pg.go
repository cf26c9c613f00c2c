package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tableorder/internal/common/db"
)

// Workers tracks kitchen worker liveness. A name may only be online once.
type Workers interface {
	Register(ctx context.Context, name string) error
	Heartbeat(ctx context.Context, name string) error
	SetOffline(ctx context.Context, name string) error
}

type workersPG struct {
	conn *db.Conn
}

func NewWorkersPG(conn *db.Conn) Workers {
	return &workersPG{conn: conn}
}

func (r *workersPG) Register(ctx context.Context, name string) error {
	var status string
	err := r.conn.Pool.QueryRow(ctx, `SELECT status FROM workers WHERE name = $1`, name).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = r.conn.Pool.Exec(ctx, `
			INSERT INTO workers (name, status, last_seen) VALUES ($1, 'online', NOW())
		`, name)
		return err
	case err != nil:
		return err
	case status == "online":
		return fmt.Errorf("worker %s is already online", name)
	default:
		_, err = r.conn.Pool.Exec(ctx, `
			UPDATE workers SET status = 'online', last_seen = NOW() WHERE name = $1
		`, name)
		return err
	}
}

func (r *workersPG) Heartbeat(ctx context.Context, name string) error {
	_, err := r.conn.Pool.Exec(ctx, `UPDATE workers SET last_seen = NOW() WHERE name = $1`, name)
	return err
}

func (r *workersPG) SetOffline(ctx context.Context, name string) error {
	_, err := r.conn.Pool.Exec(ctx, `UPDATE workers SET status = 'offline' WHERE name = $1`, name)
	return err
}
