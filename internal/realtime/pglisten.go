package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PGChannel - push-канал поверх PostgreSQL LISTEN/NOTIFY.
// Топик отображается в NOTIFY-канал один в один, нагрузка - JSON события.
type PGChannel struct {
	listener *pq.Listener

	mu   sync.Mutex
	subs map[string][]*Subscription

	done chan struct{}
}

// ListenPG открывает слушателя уведомлений Postgres
func ListenPG(dsn string) *PGChannel {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.Errorf("Postgres listener error: %v", err)
		}
	})
	ch := &PGChannel{
		listener: listener,
		subs:     make(map[string][]*Subscription),
		done:     make(chan struct{}),
	}
	go ch.loop()
	return ch
}

// Subscribe регистрирует обработчик; первый в топике включает LISTEN
func (c *PGChannel) Subscribe(topic string, h Handler) (*Subscription, error) {
	sub := &Subscription{Topic: topic, handler: h}

	c.mu.Lock()
	first := len(c.subs[topic]) == 0
	c.subs[topic] = append(c.subs[topic], sub)
	c.mu.Unlock()

	if first {
		if err := c.listener.Listen(topic); err != nil {
			logrus.Errorf("Failed to listen on %s: %v", topic, err)
			c.drop(sub)
			return nil, err
		}
		logrus.Infof("Listening for events on %s", topic)
	}
	return sub, nil
}

// Unsubscribe снимает обработчик; последний снятый выключает LISTEN
func (c *PGChannel) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}
	if last := c.drop(sub); last {
		return c.listener.Unlisten(sub.Topic)
	}
	return nil
}

// Close останавливает цикл и закрывает слушателя
func (c *PGChannel) Close() error {
	close(c.done)
	return c.listener.Close()
}

func (c *PGChannel) loop() {
	for {
		select {
		case <-c.done:
			return

		case notification := <-c.listener.Notify:
			if notification == nil {
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(notification.Extra), &ev); err != nil {
				logrus.Errorf("Dropping malformed notification on %s: %v", notification.Channel, err)
				continue
			}
			c.dispatch(notification.Channel, ev)

		case <-time.After(90 * time.Second):
			// Проверяем соединение каждые 90 секунд
			if err := c.listener.Ping(); err != nil {
				logrus.Errorf("Postgres listener ping error: %v", err)
				return
			}
		}
	}
}

func (c *PGChannel) dispatch(topic string, ev Event) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs[topic]))
	for _, sub := range c.subs[topic] {
		handlers = append(handlers, sub.handler)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (c *PGChannel) drop(sub *Subscription) bool {
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
