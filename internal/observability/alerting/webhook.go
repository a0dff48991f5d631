package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const webhookTimeout = 5 * time.Second

// WebhookSender 通过 HTTP POST 把 JSON 消息投递到机器人 Webhook。
// 同一个实例可同时作为 Slack 与钉钉的发送器。
type WebhookSender struct {
	URL    string
	Client *http.Client
}

// NewWebhookSender 创建 WebhookSender。
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{URL: strings.TrimSpace(url), Client: &http.Client{Timeout: webhookTimeout}}
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

type dingTalkPayload struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// SlackSender 返回面向 Slack Incoming Webhook 的发送器。
func (w *WebhookSender) SlackSender() SlackSender { return slackWebhook{w} }

// DingTalkSender 返回面向钉钉自定义机器人的发送器。
func (w *WebhookSender) DingTalkSender() DingTalkSender { return dingTalkWebhook{w} }

type slackWebhook struct{ *WebhookSender }

func (s slackWebhook) Send(ctx context.Context, channel, content string) error {
	return s.post(ctx, slackPayload{Channel: channel, Text: content})
}

type dingTalkWebhook struct{ *WebhookSender }

func (d dingTalkWebhook) Send(ctx context.Context, content string) error {
	var payload dingTalkPayload
	payload.MsgType = "text"
	payload.Text.Content = content
	return d.post(ctx, payload)
}

func (w *WebhookSender) post(ctx context.Context, payload any) error {
	if w == nil || w.URL == "" {
		return fmt.Errorf("webhook 地址未配置")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("编码告警消息失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造告警请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送告警失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("告警 webhook 返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// FromWebhooks 根据配置的 Webhook 地址组装告警派发器；未配置任何渠道时返回 nil。
func FromWebhooks(slackURL, slackChannel, dingTalkURL string) *FanoutDispatcher {
	var notifiers []Notifier
	if strings.TrimSpace(slackURL) != "" {
		notifiers = append(notifiers, &SlackNotifier{Sender: NewWebhookSender(slackURL).SlackSender(), ChannelID: slackChannel})
	}
	if strings.TrimSpace(dingTalkURL) != "" {
		notifiers = append(notifiers, &DingTalkNotifier{Sender: NewWebhookSender(dingTalkURL).DingTalkSender()})
	}
	if len(notifiers) == 0 {
		return nil
	}
	return NewFanout(notifiers...)
}
