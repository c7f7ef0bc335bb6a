// Package txn wraps the document store's multi-document transaction
// primitive. The membership engine expresses its read-check-write sequences
// inside WithTransaction's callback; conflict detection and the bounded
// automatic retry on transient errors are the driver's responsibility
// (mongo retries TransientTransactionError commits itself).
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// WithTransaction runs fn inside a mongo session transaction. If the server
// does not support transactions (standalone dev instances, some hosted
// tiers), fn runs directly without a session so the operation still works,
// trading away atomicity. Detection is cached per call, not globally:
// topology can change under a server upgrade.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			zap.L().Warn("store transactions unavailable, running unguarded", zap.Error(err))
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		zap.L().Warn("store transactions unavailable, running unguarded", zap.Error(err))
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the server cannot run
// multi-document transactions (not a replica set / sessions disabled).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(mongo.CommandError); ok {
		// 20 IllegalOperation on standalone, 51 and 263 are the session /
		// transaction variants seen across server versions.
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set") {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	if strings.Contains(msg, "transaction") && strings.Contains(msg, "session") {
		return true
	}
	if strings.Contains(msg, "illegal operation") && strings.Contains(msg, "transaction") {
		return true
	}
	return false
}

// IsTransient reports whether err carries mongo's transient-transaction
// label, i.e. a write conflict the caller may retry. WithTransaction
// already retries these internally for a bounded window; an error that
// still carries the label after that is terminal for the operation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	type labeled interface{ HasErrorLabel(string) bool }
	if le, ok := err.(labeled); ok {
		return le.HasErrorLabel("TransientTransactionError")
	}
	return false
}
