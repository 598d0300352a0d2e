package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/plan-it/planit/internal/domain"
	"github.com/plan-it/planit/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogOrder(ctx context.Context, order domain.Order) error {
	data := map[string]interface{}{
		"order_id":       order.ID,
		"payment_status": order.PaymentStatus,
		"order_status":   order.OrderStatus,
		"total":          order.TotalAmount,
		"lines":          len(order.Lines),
	}
	if order.SessionID != "" {
		data["session_id"] = order.SessionID
	}
	return a.LogEvent(ctx, "order.created", order.UserID, data)
}

func (a *AuditLogger) LogRoleChange(ctx context.Context, adminID, email string, role domain.Role) error {
	return a.LogEvent(ctx, "user.role_changed", adminID, map[string]interface{}{
		"email": email,
		"role":  role,
	})
}
