package notify

import "context"

// 通知イベント名
const (
	EventOrderCreated       = "order:created"
	EventOrderStatusUpdated = "order:status_updated"
)

// 本人宛てと管理者ブロードキャストの2系統。
// 送りっぱなし（ack無し、リトライ無し）で、失敗しても業務処理は巻き戻さない
type Notifier interface {
	NotifyUser(userID int64, event string, payload interface{})
	NotifyAdmin(event string, payload interface{})
}

// 注文イベントの外部ストリーム（Kafkaなど）。未設定環境ではnil実装でよい
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload interface{})
}
