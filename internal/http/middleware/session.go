package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"studium/internal/database"
)

// Session opens a database session per request and stores it in the user context.
// The session commits when the handler succeeds with a status below 400 and rolls back
// otherwise. A failed commit is returned as the request's error.
func Session(db *sqlx.DB, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, sess, err := database.Begin(c.UserContext(), db)
		if err != nil {
			return err
		}
		c.SetUserContext(ctx)

		defer func() {
			if p := recover(); p != nil {
				_ = sess.Rollback()
				panic(p)
			}
		}()

		err = c.Next()
		if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			if rbErr := sess.Rollback(); rbErr != nil {
				log.ErrorContext(ctx, "session rollback failed",
					slog.String("request_id", RequestIDFromLocals(c)),
					slog.String("error", rbErr.Error()))
			}
			return err
		}
		return sess.Commit()
	}
}
