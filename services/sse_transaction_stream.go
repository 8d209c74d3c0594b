// services/sse_transaction_stream.go
package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"privacy-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
)

// StreamTransactionsSSE streams new ledger transactions for the authenticated user.
// The cursor is the newest created_at seen, which is strictly increasing per user.
func (s *LedgerService) StreamTransactionsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ctx := context.Background()
	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var cursor int64
		if latest, err := s.Transactions(ctx, userID, TransactionFilter{Limit: 1}); err != nil {
			utils.Log.WithError(err).Warnf("SSE init error for user %s", userID)
		} else if len(latest) > 0 {
			cursor = latest[0].CreatedAt
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				fresh, err := s.TransactionsSince(ctx, userID, cursor)
				if err != nil {
					utils.Log.WithError(err).Warnf("SSE query error for user %s", userID)
					continue
				}
				if len(fresh) == 0 {
					// Keepalive so dead clients are detected on flush
					w.WriteString(":\n\n")
				}
				for _, t := range fresh {
					payload, _ := json.Marshal(t)
					fmt.Fprintf(w, "id: %s\nevent: transaction\ndata: %s\n\n", t.ID, payload)
					cursor = t.CreatedAt
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-done:
				return
			}
		}
	})

	return nil
}
