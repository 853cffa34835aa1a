package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Кадр, приходящий по websocket: топик плюс событие
type wsFrame struct {
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}

// Управляющее сообщение серверу канала
type wsCommand struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// WSChannel - push-канал поверх websocket
type WSChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // у gorilla один конкурентный писатель

	mu   sync.Mutex
	subs map[string][]*Subscription

	done chan struct{}
}

// DialWS подключается к websocket-каналу и запускает цикл чтения
func DialWS(url string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logrus.Errorf("Failed to dial realtime websocket: %v", err)
		return nil, err
	}
	ch := &WSChannel{
		conn: conn,
		subs: make(map[string][]*Subscription),
		done: make(chan struct{}),
	}
	go ch.readLoop()
	logrus.Infof("Realtime websocket connected: %s", url)
	return ch, nil
}

// Subscribe регистрирует обработчик топика
func (c *WSChannel) Subscribe(topic string, h Handler) (*Subscription, error) {
	sub := &Subscription{Topic: topic, handler: h}

	c.mu.Lock()
	first := len(c.subs[topic]) == 0
	c.subs[topic] = append(c.subs[topic], sub)
	c.mu.Unlock()

	if first {
		if err := c.send(wsCommand{Action: "subscribe", Topic: topic}); err != nil {
			c.drop(sub)
			return nil, err
		}
	}
	return sub, nil
}

// Unsubscribe снимает обработчик; последний снятый закрывает топик на сервере
func (c *WSChannel) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}
	last := c.drop(sub)
	if last {
		return c.send(wsCommand{Action: "unsubscribe", Topic: sub.Topic})
	}
	return nil
}

// Close обрывает соединение; все подписки умирают вместе с ним
func (c *WSChannel) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *WSChannel) readLoop() {
	for {
		var frame wsFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
			default:
				logrus.Errorf("Realtime websocket read error: %v", err)
			}
			return
		}
		c.dispatch(frame.Topic, frame.Event)
	}
}

func (c *WSChannel) dispatch(topic string, ev Event) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs[topic]))
	for _, sub := range c.subs[topic] {
		handlers = append(handlers, sub.handler)
	}
	c.mu.Unlock()

	// Обработчики зовутся без блокировки
	for _, h := range handlers {
		h(ev)
	}
}

func (c *WSChannel) send(cmd wsCommand) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(cmd)
}

// drop убирает подписку и сообщает, была ли она последней в топике
func (c *WSChannel) drop(sub *Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[sub.Topic]
	for i, s := range subs {
		if s == sub {
			c.subs[sub.Topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return len(c.subs[sub.Topic]) == 0
}
