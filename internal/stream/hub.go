package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	IndexChannel = "index"

	redisPrefix = "yatube:stream:"
)

func AuthorChannel(username string) string { return "author:" + username }

func GroupChannel(slug string) string { return "group:" + slug }

// ValidChannel reports whether clients may subscribe to ch.
func ValidChannel(ch string) bool {
	if ch == IndexChannel {
		return true
	}
	for _, prefix := range []string{"author:", "group:"} {
		if rest, ok := strings.CutPrefix(ch, prefix); ok {
			return rest != ""
		}
	}
	return false
}

// Hub fans payloads out to websocket clients by channel. With redis every
// broadcast goes through pub/sub so all instances deliver it.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	done    chan struct{}
}

type Client struct {
	Channel string
	Send    chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}

	if redisClient != nil {
		ctx := context.Background()
		h.pubsub = redisClient.PSubscribe(ctx, redisPrefix+"*")
		// wait for the subscription so early broadcasts are not lost
		if _, err := h.pubsub.Receive(ctx); err != nil {
			log.WithError(err).Warn("redis psubscribe failed")
		}
		go h.subscribeRedis()
	} else {
		close(h.done)
	}
	return h
}

func (h *Hub) Register(channel string) *Client {
	client := &Client{
		Channel: channel,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel] == nil {
		h.clients[channel] = map[*Client]struct{}{}
	}
	h.clients[channel][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if channelClients, ok := h.clients[client.Channel]; ok {
		if _, registered := channelClients[client]; !registered {
			return
		}
		delete(channelClients, client)
		if len(channelClients) == 0 {
			delete(h.clients, client.Channel)
		}
		close(client.Send)
	}
}

// Clients returns the number of local subscribers of channel.
func (h *Hub) Clients(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}

func (h *Hub) Broadcast(channel string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisPrefix+channel, payload).Err()
		if err == nil {
			return
		}
		log.WithError(err).WithField("channel", channel).Warn("redis publish failed, delivering locally")
	}
	h.deliver(channel, payload)
}

// Close stops the redis subscription.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	err := h.pubsub.Close()
	<-h.done
	return err
}

func (h *Hub) deliver(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[channel] {
		select {
		case client.Send <- payload:
		default:
			// slow consumer, drop
		}
	}
}

func (h *Hub) subscribeRedis() {
	defer close(h.done)
	for msg := range h.pubsub.Channel() {
		channel := strings.TrimPrefix(msg.Channel, redisPrefix)
		h.deliver(channel, []byte(msg.Payload))
	}
}
