package signaling

import (
	"sync"

	"github.com/rs/zerolog"
)

// Manager tracks the live signaling connections so they can be counted and
// closed together on shutdown.
type Manager struct {
	mu      sync.RWMutex
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	quit         chan struct{}
	done         chan struct{}

	log zerolog.Logger
}

// NewManager creates a manager. Call Run to start processing registrations.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		log:          logger.With().Str("component", "manager").Logger(),
	}
}

// Register hands c to the manager loop. It returns false after Stop.
func (m *Manager) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.quit:
		return false
	}
}

// Unregister removes c and closes its outbound side. Safe after Stop.
func (m *Manager) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.quit:
		c.Close()
	}
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Clients)
}

// Run processes registrations until Stop is called, then closes every client.
func (m *Manager) Run() {
	defer close(m.done)

	for {
		select {
		case <-m.quit:
			m.mu.Lock()
			for id, client := range m.Clients {
				client.Close()
				delete(m.Clients, id)
			}
			m.mu.Unlock()
			m.log.Info().Msg("Manager stopped, all clients closed")
			return

		case client := <-m.RegisterCh:
			m.mu.Lock()
			m.Clients[client.GetClientID()] = client
			count := len(m.Clients)
			m.mu.Unlock()
			m.log.Debug().Str("client_id", client.GetClientID()).Int("count", count).Msg("Client registered")

		case client := <-m.UnregisterCh:
			m.mu.Lock()
			_, ok := m.Clients[client.GetClientID()]
			delete(m.Clients, client.GetClientID())
			count := len(m.Clients)
			m.mu.Unlock()
			client.Close()
			if ok {
				m.log.Debug().Str("client_id", client.GetClientID()).Int("count", count).Msg("Client unregistered")
			}
		}
	}
}

// Stop ends Run and waits for it to finish closing clients.
func (m *Manager) Stop() {
	close(m.quit)
	<-m.done
}
