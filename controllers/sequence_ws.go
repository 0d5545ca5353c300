package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"propflow/config"
	"propflow/models"
)

// HandleSequenceProgressWS streams live queue counts for one sequence. The
// client opens the socket, sends {"sequence_id": N, "action": "watch"}, and
// receives a snapshot every few seconds until it disconnects.
func HandleSequenceProgressWS(c *websocket.Conn) {
	defer c.Close()

	var input struct {
		SequenceID uint   `json:"sequence_id"`
		Action     string `json:"action"`
	}
	if err := c.ReadJSON(&input); err != nil {
		log.Printf("Sequence WS read error: %v", err)
		return
	}
	if input.Action != "watch" || input.SequenceID == 0 {
		return
	}

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var snapshot struct {
			Pending    int64 `json:"pending"`
			Processing int64 `json:"processing"`
			Sent       int64 `json:"sent"`
			Skipped    int64 `json:"skipped"`
			Failed     int64 `json:"failed"`
		}

		err := config.DB.Model(&models.Communication{}).
			Select(`
				SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) AS pending,
				SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END) AS processing,
				COUNT(sent_at) AS sent,
				SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END) AS skipped,
				SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed`).
			Where("sequence_id = ?", input.SequenceID).
			Scan(&snapshot).Error
		if err != nil {
			log.Printf("Sequence WS query error: %v", err)
			return
		}

		status := "running"
		if snapshot.Pending == 0 && snapshot.Processing == 0 {
			status = "idle"
		}

		if err := c.WriteJSON(struct {
			SequenceID uint        `json:"sequence_id"`
			Status     string      `json:"status"`
			Counts     interface{} `json:"counts"`
		}{input.SequenceID, status, snapshot}); err != nil {
			return
		}
	}
}
