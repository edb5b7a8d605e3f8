package ws

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages live-feed subscriptions keyed by server name.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with the server it belongs to.
type message struct {
	server  string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	server string
	client Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.server]; !ok {
				h.clients[sub.server] = make(map[Subscriber]struct{})
			}
			h.clients[sub.server][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.server]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.server)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.server]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.server)
				}
			}
		}
	}
}

// Register adds a client to a server's live feed.
func (h *Hub) Register(server string, client Subscriber) {
	h.register <- subscription{server: server, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(server string, client Subscriber) {
	h.unreg <- subscription{server: server, client: client}
}

// Broadcast sends payload to all subscribers of a server's feed.
func (h *Hub) Broadcast(server string, payload []byte) {
	h.broadcast <- message{server: server, payload: payload}
}
