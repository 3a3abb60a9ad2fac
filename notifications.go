package main

import (
	"database/sql"
	"log"
	"time"
)

const (
	NotificationCategoryTrade       = "trade"
	NotificationCategoryAchievement = "achievement"
	NotificationCategoryMarket      = "market"
	NotificationCategorySystem      = "system"
)

const notificationRetention = 14 * 24 * time.Hour

type NotificationItem struct {
	ID        int64  `json:"id"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

// emitNotification is fire-and-forget: it runs after the triggering
// transaction has committed and a failed insert only logs. Game
// operations never fail because a notification could not be written.
func emitNotification(db *sql.DB, playerID string, category string, message string) {
	go func() {
		if _, err := db.Exec(`
			INSERT INTO notifications (player_id, category, message)
			VALUES ($1, $2, $3)
		`, playerID, category, message); err != nil {
			log.Println("notification emit failed:", err)
		}
	}()
}

func listNotifications(db *sql.DB, playerID string, limit int) ([]NotificationItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 60
	}
	rows, err := db.Query(`
		SELECT id, category, message, is_read, created_at
		FROM notifications
		WHERE player_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []NotificationItem{}
	for rows.Next() {
		var item NotificationItem
		var createdAt time.Time
		if err := rows.Scan(&item.ID, &item.Category, &item.Message, &item.IsRead, &createdAt); err != nil {
			return nil, err
		}
		item.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		items = append(items, item)
	}
	return items, rows.Err()
}

func markNotificationsRead(db *sql.DB, playerID string) error {
	_, err := db.Exec(`
		UPDATE notifications
		SET is_read = TRUE
		WHERE player_id = $1 AND NOT is_read
	`, playerID)
	return err
}

func pruneNotifications(db *sql.DB) {
	cutoff := time.Now().UTC().Add(-notificationRetention)
	if _, err := db.Exec(`
		DELETE FROM notifications
		WHERE created_at < $1
	`, cutoff); err != nil {
		log.Println("notification prune failed:", err)
	}
}

func startNotificationPruner(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			pruneNotifications(db)
		}
	}()
}
