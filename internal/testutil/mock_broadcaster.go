//go:build !production

package testutil

import (
	"sync"

	"github.com/palemoky/geoquiz/internal/network/protocol"
)

// Sent 一条已发送消息，To 为空表示广播
type Sent struct {
	To      string
	Message *protocol.Message
}

// RecordingBroadcaster 记录所有发送的消息，并发安全。
// Fail 中的玩家单发会失败。
type RecordingBroadcaster struct {
	mu   sync.Mutex
	sent []Sent
	Fail map[string]error
}

// NewRecordingBroadcaster 创建记录用广播器
func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{Fail: make(map[string]error)}
}

func (b *RecordingBroadcaster) Broadcast(msg *protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, Sent{Message: msg})
}

func (b *RecordingBroadcaster) SendTo(playerID string, msg *protocol.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.Fail[playerID]; ok {
		return err
	}
	b.sent = append(b.sent, Sent{To: playerID, Message: msg})
	return nil
}

// All 按发送顺序返回全部消息
func (b *RecordingBroadcaster) All() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

// OfType 返回指定类型的消息
func (b *RecordingBroadcaster) OfType(t protocol.MessageType) []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Sent
	for _, s := range b.sent {
		if s.Message.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// Reset 清空记录
func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}
