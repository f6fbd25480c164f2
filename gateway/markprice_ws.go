package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// MarkPriceStream 订阅单个交易对的标记价格流（<symbol>@markPrice@1s），
// 缓存最新价格供执行端读取。连接断开后 Run 返回，由调用方决定是否重连。
type MarkPriceStream struct {
	Endpoint string // 例如 wss://fstream.binance.com
	Symbol   string
	Dialer   *websocket.Dialer

	mu        sync.RWMutex
	lastPrice decimal.Decimal
	updatedAt time.Time
}

func NewMarkPriceStream(endpoint, symbol string) *MarkPriceStream {
	return &MarkPriceStream{
		Endpoint: endpoint,
		Symbol:   symbol,
		Dialer:   websocket.DefaultDialer,
	}
}

// markPriceEvent 标记价格推送中本工具关心的字段。
type markPriceEvent struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

// Run 连接并持续读取推送，直到 ctx 取消或连接出错。
func (m *MarkPriceStream) Run(ctx context.Context) error {
	if m.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	endpoint := strings.TrimSuffix(m.Endpoint, "/")
	u := endpoint + "/ws/" + strings.ToLower(m.Symbol) + "@markPrice@1s"

	conn, _, err := m.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	// ctx 取消时关闭连接以打断阻塞中的 ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var ev markPriceEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.Price == "" {
			continue
		}
		price, err := decimal.NewFromString(ev.Price)
		if err != nil {
			continue
		}
		m.mu.Lock()
		m.lastPrice = price
		m.updatedAt = time.Now()
		m.mu.Unlock()
	}
}

// LastPrice 返回最近一次推送的标记价格；尚未收到推送时 ok 为 false。
func (m *MarkPriceStream) LastPrice() (price decimal.Decimal, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPrice, !m.updatedAt.IsZero()
}
