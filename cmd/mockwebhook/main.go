// Команда mockwebhook отправляет подписанное событие мок-шлюза в локальный сервер.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/gateway"
	"github.com/ignatzorin/creator-settlement/internal/logger"
)

func main() {
	var (
		target    = flag.String("url", "http://localhost:8080/api/payments/webhook", "адрес вебхука")
		secret    = flag.String("secret", os.Getenv("MOCK_WEBHOOK_SECRET"), "секрет подписи")
		eventID   = flag.String("event-id", "", "id события (по умолчанию случайный)")
		eventType = flag.String("type", gateway.EventPaymentSucceeded, "тип события")
		intentID  = flag.String("intent", "", "id платёжного намерения")
		dryRun    = flag.Bool("dry-run", false, "только напечатать запрос")
	)
	flag.Parse()

	logger.Init("info")
	logger.SetTextFormatter()

	if *intentID == "" {
		logger.Log.Fatal("mockwebhook: нужен -intent")
	}
	if *secret == "" {
		*secret = "mock-webhook-secret-dev"
	}
	if *eventID == "" {
		*eventID = "evt_" + uuid.NewString()
	}

	body := gateway.MockEventBody(*eventID, *eventType, *intentID)
	signature := gateway.MockSignatureHeaderValue([]byte(*secret), time.Now().Unix(), body)

	log := logger.Log.WithFields(logrus.Fields{
		"event_id": *eventID,
		"type":     *eventType,
		"intent":   *intentID,
	})
	if *dryRun {
		log.WithField("signature", signature).Infof("mockwebhook: %s", body)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *target, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("mockwebhook: запрос: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(gateway.MockSignatureHeader, signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("mockwebhook: отправка: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	log.WithField("status", resp.StatusCode).Infof("mockwebhook: ответ %s", respBody)
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
