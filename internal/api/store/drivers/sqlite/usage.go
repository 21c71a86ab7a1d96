package sqlite

import "context"

type usageRepo struct {
	q dbtx
}

func (r *usageRepo) AddRequests(ctx context.Context, day string, userID int64, n int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO usage_stats (day, user_id, requests)
		VALUES (?, ?, ?)
		ON CONFLICT (day, user_id) DO UPDATE SET requests = requests + excluded.requests`,
		day, userID, n)
	return err
}

func (r *usageRepo) GetRequests(ctx context.Context, day string, userID int64) (int64, error) {
	var requests int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(requests), 0) FROM usage_stats
		WHERE day = ? AND user_id = ?`,
		day, userID).Scan(&requests)
	return requests, err
}
