package realtime

// Топики push-канала
const (
	TopicPosts    = "feed_posts"
	TopicProfiles = "feed_profiles"
)

// Обработчик входящих событий топика
type Handler func(Event)

// Подписка на топик; возвращается каналом и нужна для отписки
type Subscription struct {
	Topic   string
	handler Handler
}

// Channel - абстракция push-канала (websocket, LISTEN/NOTIFY, фейк в тестах)
type Channel interface {
	Subscribe(topic string, h Handler) (*Subscription, error)
	Unsubscribe(sub *Subscription) error
}
