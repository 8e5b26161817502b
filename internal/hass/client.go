package hass

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/core/port"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	msgTypeAuthRequired = "auth_required"
	msgTypeAuth         = "auth"
	msgTypeAuthOk       = "auth_ok"
	msgTypeAuthInvalid  = "auth_invalid"
	msgTypeResult       = "result"
	msgTypeEvent        = "event"

	cmdGetStates          = "get_states"
	cmdSubscribeEvents    = "subscribe_events"
	cmdDeviceRegistryList = "config/device_registry/list"
	cmdEntityRegistryList = "config/entity_registry/list"

	eventStateChanged = "state_changed"

	requestTimeout = 10 * time.Second
	writeTimeout   = 10 * time.Second
)

type wsRequest struct {
	Id          int64  `json:"id,omitempty"`
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
	EventType   string `json:"event_type,omitempty"`
}

type wsMessage struct {
	Id        int64           `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   bool            `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Event     *wsEvent        `json:"event,omitempty"`
	Error     *wsError        `json:"error,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsEvent struct {
	EventType string           `json:"event_type"`
	Data      stateChangedData `json:"data"`
}

type stateChangedData struct {
	EntityId string       `json:"entity_id"`
	NewState *stateObject `json:"new_state"`
}

type stateObject struct {
	EntityId string `json:"entity_id"`
	State    string `json:"state"`
}

// registry rows as the websocket API serializes them. Nullable fields
// decode as zero values.
type registryDevice struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	ViaDeviceId  string `json:"via_device_id"`
}

type registryEntity struct {
	EntityId   string `json:"entity_id"`
	DeviceId   string `json:"device_id"`
	Platform   string `json:"platform"`
	DisabledBy string `json:"disabled_by"`
}

// Client talks the Home Assistant websocket API: token auth handshake,
// correlated commands, and a state_changed subscription that keeps an
// in-memory copy of every entity state.
type Client struct {
	url   string
	token string

	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan wsMessage
	nextId    int64

	statesMu sync.RWMutex
	states   map[string]domain.StateValue

	connected atomic.Bool
	closed    atomic.Bool

	onConnectionLost func(error)
	logger           *zap.Logger
}

func NewClient(rawURL string, token string, onConnectionLost func(error), logger *zap.Logger) *Client {
	return &Client{
		url:              websocketURL(rawURL),
		token:            token,
		pending:          make(map[int64]chan wsMessage),
		states:           make(map[string]domain.StateValue),
		onConnectionLost: onConnectionLost,
		logger:           logger.With(zap.String("client", "hass")),
	}
}

// websocketURL maps a Home Assistant base URL to its websocket endpoint.
func websocketURL(rawURL string) string {
	u := strings.TrimSuffix(strings.TrimSpace(rawURL), "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if !strings.HasSuffix(u, "/api/websocket") {
		u += "/api/websocket"
	}
	return u
}

// Connect dials the websocket endpoint, authenticates, subscribes to
// state_changed events and primes the state store with a full snapshot.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	if err := c.authenticate(); err != nil {
		conn.Close()
		return err
	}

	go c.readPump()

	// subscribe before the snapshot so changes in between are not lost
	if err := c.subscribeStateChanges(); err != nil {
		c.Close()
		return err
	}
	if err := c.primeStates(); err != nil {
		c.Close()
		return err
	}

	c.connected.Store(true)
	return nil
}

// authenticate runs the auth_required/auth/auth_ok exchange. It reads the
// socket directly; the read pump only starts once auth has settled.
func (c *Client) authenticate() error {
	var hello wsMessage
	if err := c.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth challenge: %w", err)
	}
	if hello.Type != msgTypeAuthRequired {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}

	if err := c.conn.WriteJSON(wsRequest{Type: msgTypeAuth, AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var verdict wsMessage
	if err := c.conn.ReadJSON(&verdict); err != nil {
		return fmt.Errorf("read auth verdict: %w", err)
	}
	switch verdict.Type {
	case msgTypeAuthOk:
		c.logger.Info("hass: authenticated", zap.String("ha_version", verdict.HAVersion))
		return nil
	case msgTypeAuthInvalid:
		return fmt.Errorf("authentication rejected: %s", verdict.Message)
	default:
		return fmt.Errorf("unexpected auth reply %q", verdict.Type)
	}
}

func (c *Client) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.connected.Store(false)
			if c.closed.Load() {
				return
			}
			c.logger.Warn("hass: connection lost", zap.Error(err))
			if c.onConnectionLost != nil {
				c.onConnectionLost(err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("hass: discarding unparseable frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case msgTypeResult:
			c.deliver(msg)
		case msgTypeEvent:
			c.handleEvent(msg.Event)
		}
	}
}

func (c *Client) deliver(msg wsMessage) {
	c.pendingMu.Lock()
	ch, ok := c.pending[msg.Id]
	c.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Client) handleEvent(event *wsEvent) {
	if event == nil || event.EventType != eventStateChanged {
		return
	}
	c.statesMu.Lock()
	defer c.statesMu.Unlock()
	if event.Data.NewState == nil {
		delete(c.states, event.Data.EntityId)
		return
	}
	c.states[event.Data.EntityId] = domain.StateOf(event.Data.NewState.State)
}

// call sends a correlated command and waits for its result frame.
func (c *Client) call(req wsRequest) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextId, 1)
	req.Id = id

	ch := make(chan wsMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.writeJSON(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case msg := <-ch:
		if !msg.Success {
			if msg.Error != nil {
				return nil, fmt.Errorf("%s failed: %s (%s)", req.Type, msg.Error.Message, msg.Error.Code)
			}
			return nil, fmt.Errorf("%s failed", req.Type)
		}
		return msg.Result, nil
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("%s timed out after %s", req.Type, requestTimeout)
	}
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) subscribeStateChanges() error {
	_, err := c.call(wsRequest{Type: cmdSubscribeEvents, EventType: eventStateChanged})
	return err
}

func (c *Client) primeStates() error {
	result, err := c.call(wsRequest{Type: cmdGetStates})
	if err != nil {
		return err
	}
	var snapshot []stateObject
	if err := json.Unmarshal(result, &snapshot); err != nil {
		return fmt.Errorf("decode states: %w", err)
	}

	c.statesMu.Lock()
	defer c.statesMu.Unlock()
	for _, s := range snapshot {
		c.states[s.EntityId] = domain.StateOf(s.State)
	}
	c.logger.Info("hass: primed state store", zap.Int("states", len(snapshot)))
	return nil
}

// Devices lists the device registry.
func (c *Client) Devices() ([]domain.Device, error) {
	result, err := c.call(wsRequest{Type: cmdDeviceRegistryList})
	if err != nil {
		return nil, err
	}
	var rows []registryDevice
	if err := json.Unmarshal(result, &rows); err != nil {
		return nil, fmt.Errorf("decode device registry: %w", err)
	}

	devices := make([]domain.Device, 0, len(rows))
	for _, r := range rows {
		devices = append(devices, domain.Device{
			Id:           r.Id,
			Name:         r.Name,
			Manufacturer: r.Manufacturer,
			Model:        r.Model,
			ViaDeviceId:  r.ViaDeviceId,
		})
	}
	return devices, nil
}

// Entities lists the entity registry.
func (c *Client) Entities() ([]domain.Entity, error) {
	result, err := c.call(wsRequest{Type: cmdEntityRegistryList})
	if err != nil {
		return nil, err
	}
	var rows []registryEntity
	if err := json.Unmarshal(result, &rows); err != nil {
		return nil, fmt.Errorf("decode entity registry: %w", err)
	}

	entities := make([]domain.Entity, 0, len(rows))
	for _, r := range rows {
		entities = append(entities, domain.Entity{
			Id:         r.EntityId,
			DeviceId:   r.DeviceId,
			Platform:   r.Platform,
			DisabledBy: r.DisabledBy,
		})
	}
	return entities, nil
}

// State returns the current state of an entity, or a missing value when the
// entity is not in the store.
func (c *Client) State(entityId string) domain.StateValue {
	c.statesMu.RLock()
	defer c.statesMu.RUnlock()
	if state, ok := c.states[entityId]; ok {
		return state
	}
	return domain.MissingState()
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close tears the connection down without firing the connection lost
// callback.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.connected.Store(false)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var _ port.RegistryClient = (*Client)(nil)
