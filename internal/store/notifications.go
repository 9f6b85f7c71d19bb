package store

import (
	"context"

	"marketplace-service/internal/models"
)

// CreateNotification writes an inbox entry
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (recipient_role, recipient_id, kind, quotation_request_id, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return translateError(s.q.GetContext(ctx, n, query,
		n.RecipientRole, n.RecipientID, n.Kind, n.QuotationRequestID, n.Message))
}

// ListNotifications retrieves a recipient's inbox, newest first
func (s *Store) ListNotifications(ctx context.Context, role string, recipientID int64) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.q.SelectContext(ctx, &notifications, `
		SELECT id, recipient_role, recipient_id, kind, quotation_request_id, message, created_at, read_at
		FROM notifications
		WHERE recipient_role = $1 AND recipient_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 200`, role, recipientID)
	return notifications, translateError(err)
}

// MarkNotificationRead stamps read_at on a notification owned by the recipient
func (s *Store) MarkNotificationRead(ctx context.Context, id int64, role string, recipientID int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND recipient_role = $2 AND recipient_id = $3`, id, role, recipientID)
	if err != nil {
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
