package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/config"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
)

const oneSignalAPIURL = "https://onesignal.com/api/v1/notifications"

// PushService dispatches mobile push notifications through OneSignal.
// Fire and forget: failures are logged, never retried, never surfaced to
// the messaging path.
type PushService struct {
	client  *http.Client
	appID   string
	apiKey  string
	baseURL string
}

func NewPushService() *PushService {
	return &PushService{
		client:  &http.Client{Timeout: 10 * time.Second},
		appID:   config.AppConfig.OneSignalAppID,
		apiKey:  config.AppConfig.OneSignalAPIKey,
		baseURL: oneSignalAPIURL,
	}
}

type oneSignalRequest struct {
	AppID            string            `json:"app_id"`
	IncludeExternal  []string          `json:"include_external_user_ids"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	ChannelForExtIDs string            `json:"channel_for_external_user_ids"`
}

// Notify sends one (recipient, title, body) push. Safe to call from a
// goroutine; all failure modes end in a log line.
func (s *PushService) Notify(recipientID, title, body string) {
	if s.appID == "" || s.apiKey == "" {
		logger.Debug().Str("recipient", recipientID).Msg("push not configured, skipping")
		return
	}

	payload := oneSignalRequest{
		AppID:            s.appID,
		IncludeExternal:  []string{recipientID},
		Headings:         map[string]string{"en": title},
		Contents:         map[string]string{"en": body},
		ChannelForExtIDs: "push",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("push payload marshal failed")
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL, bytes.NewReader(data))
	if err != nil {
		logger.Error().Err(err).Msg("push request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("recipient", recipientID).Msg("push dispatch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn().Int("status", resp.StatusCode).Str("recipient", recipientID).Msg("push rejected")
	}
}
