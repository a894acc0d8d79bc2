package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"rotapool/internal/model"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"
)

const feishuWebhookEnv = "FEISHU_WEBHOOK_URL"

// ResolveWebhookURL prefers the configured URL over the environment
func ResolveWebhookURL(configured string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(feishuWebhookEnv)
}

// FeishuNotifier sends alert cards to a Feishu (Lark) webhook when a resource
// leaves the active partition on its own: demotion or a failed capability probe.
type FeishuNotifier struct {
	webhookURL string
	client     *http.Client
}

var _ interfaces.EventRecorder = (*FeishuNotifier)(nil)

// NewFeishuNotifier creates a notifier. An empty URL disables sending.
func NewFeishuNotifier(webhookURL string) *FeishuNotifier {
	if webhookURL == "" {
		logger.Warn("Feishu webhook URL not configured, demotion alerts will be disabled")
	}
	return &FeishuNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a webhook is configured
func (f *FeishuNotifier) Enabled() bool {
	return f.webhookURL != ""
}

// RecordEvent implements interfaces.EventRecorder; other event types are ignored
func (f *FeishuNotifier) RecordEvent(ctx context.Context, event *interfaces.ResourceEvent) error {
	if !f.Enabled() || !alertable(event) {
		return nil
	}

	payload, err := json.Marshal(f.buildAlertMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal Feishu message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Feishu notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Feishu API returned status code: %d", resp.StatusCode)
	}

	logger.InfoCtx(ctx, "Feishu alert sent for %s %s", event.Kind, event.ResourceID)
	return nil
}

func alertable(event *interfaces.ResourceEvent) bool {
	if event == nil {
		return false
	}
	switch event.Type {
	case interfaces.EventResourceDemoted:
		return true
	case interfaces.EventResourceProbed:
		return event.ToStatus != model.StatusActive
	}
	return false
}

// buildAlertMessage builds a Feishu message card for a demotion or failed probe
func (f *FeishuNotifier) buildAlertMessage(event *interfaces.ResourceEvent) map[string]interface{} {
	title := "Resource demoted"
	template := "red"
	if event.Type == interfaces.EventResourceProbed {
		title = "Capability probe failed"
		template = "orange"
	}

	content := fmt.Sprintf("**Pool**: %s\n**Resource**: %s\n**Status**: %s → %s",
		event.Kind, event.ResourceID, event.FromStatus, event.ToStatus)
	if event.Reason != "" {
		content += fmt.Sprintf("\n**Reason**: %s", event.Reason)
	}
	if event.Category != "" {
		content += fmt.Sprintf("\n**Category**: %s", event.Category)
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": template,
				"title": map[string]interface{}{
					"content": title,
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": content,
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "hr",
				},
				map[string]interface{}{
					"tag": "note",
					"elements": []interface{}{
						map[string]interface{}{
							"tag":     "plain_text",
							"content": "Occurred at: " + event.OccurredAt.UTC().Format(time.RFC3339),
						},
					},
				},
			},
		},
	}
}
