package database

import (
	"context"
)

type CreatePrintJobParams struct {
	SectorID  int64
	PrinterID *int64
	SaleID    int64
	Content   string
}

const createPrintJob = `
INSERT INTO print_jobs (sector_id, printer_id, sale_id, content)
VALUES ($1, $2, $3, $4)
RETURNING id, sector_id, printer_id, sale_id, content, status, last_error, created_at, updated_at`

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	var j PrintJob
	err := q.db.QueryRow(ctx, createPrintJob, arg.SectorID, arg.PrinterID, arg.SaleID, arg.Content).Scan(
		&j.ID, &j.SectorID, &j.PrinterID, &j.SaleID, &j.Content, &j.Status, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

type CreateMessageJobParams struct {
	SectorID    int64
	Destination string
	SaleID      int64
	Content     string
}

const createMessageJob = `
INSERT INTO message_jobs (sector_id, destination, sale_id, content)
VALUES ($1, $2, $3, $4)
RETURNING id, sector_id, destination, sale_id, content, status, last_error, created_at, updated_at`

func (q *Queries) CreateMessageJob(ctx context.Context, arg CreateMessageJobParams) (MessageJob, error) {
	var j MessageJob
	err := q.db.QueryRow(ctx, createMessageJob, arg.SectorID, arg.Destination, arg.SaleID, arg.Content).Scan(
		&j.ID, &j.SectorID, &j.Destination, &j.SaleID, &j.Content, &j.Status, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

type MarkJobFailedParams struct {
	ID        int64
	LastError string
}

func (q *Queries) MarkPrintJobFailed(ctx context.Context, arg MarkJobFailedParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE print_jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.LastError)
	return err
}

func (q *Queries) MarkMessageJobFailed(ctx context.Context, arg MarkJobFailedParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE message_jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.LastError)
	return err
}
