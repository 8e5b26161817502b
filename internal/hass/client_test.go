package hass

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const TEST_TOKEN = "llat-token"

// fakeHass speaks just enough of the Home Assistant websocket API for the
// client tests: auth handshake, command results by id, pushed events.
type fakeHass struct {
	t      *testing.T
	server *httptest.Server
	events chan stateChangedData

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeHass(t *testing.T) *fakeHass {
	f := &fakeHass{
		t:      t,
		events: make(chan stateChangedData, 8),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeHass) url() string {
	return f.server.URL
}

// dropConnection closes the active websocket from the server side.
func (f *fakeHass) dropConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *fakeHass) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade failed: %s", err)
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	var writeMu sync.Mutex
	send := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.WriteJSON(v)
	}

	send(map[string]any{"type": "auth_required", "ha_version": "2024.8.1"})
	var auth map[string]any
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if auth["access_token"] != TEST_TOKEN {
		send(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		conn.Close()
		return
	}
	send(map[string]any{"type": "auth_ok", "ha_version": "2024.8.1"})

	go func() {
		for data := range f.events {
			send(map[string]any{
				"type":  "event",
				"event": map[string]any{"event_type": "state_changed", "data": data},
			})
		}
	}()

	for {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		id := req["id"]
		switch req["type"] {
		case "subscribe_events":
			send(map[string]any{"id": id, "type": "result", "success": true, "result": nil})
		case "get_states":
			send(map[string]any{"id": id, "type": "result", "success": true, "result": []map[string]any{
				{"entity_id": "sensor.inverter_active_power", "state": "4200"},
				{"entity_id": "sensor.power_meter_frequency", "state": "50.01"},
				{"entity_id": "sensor.broken", "state": "unavailable"},
			}})
		case "config/device_registry/list":
			send(map[string]any{"id": id, "type": "result", "success": true, "result": []map[string]any{
				{"id": "dev-1", "name": "Inverter", "manufacturer": "Huawei", "model": "SUN2000", "via_device_id": nil},
				{"id": "dev-2", "name": "Power Meter", "manufacturer": "Huawei", "model": "DTSU666-H", "via_device_id": "dev-1"},
			}})
		case "config/entity_registry/list":
			send(map[string]any{"id": id, "type": "result", "success": true, "result": []map[string]any{
				{"entity_id": "sensor.inverter_active_power", "device_id": "dev-1", "platform": "huawei_solar", "disabled_by": nil},
				{"entity_id": "sensor.power_meter_frequency", "device_id": "dev-2", "platform": "huawei_solar", "disabled_by": "user"},
			}})
		default:
			send(map[string]any{"id": id, "type": "result", "success": false,
				"error": map[string]any{"code": "unknown_command", "message": "Unknown command"}})
		}
	}
}

func TestClientConnectAndRead(t *testing.T) {
	require := require.New(t)

	fake := newFakeHass(t)
	client := NewClient(fake.url(), TEST_TOKEN, nil, testLogger)

	require.NoError(client.Connect())
	defer client.Close()
	assert.True(t, client.Connected())

	devices, err := client.Devices()
	require.NoError(err)
	require.Len(devices, 2)
	assert.Equal(t, "dev-1", devices[0].Id)
	assert.Equal(t, "", devices[0].ViaDeviceId)
	assert.Equal(t, "dev-1", devices[1].ViaDeviceId)

	entities, err := client.Entities()
	require.NoError(err)
	require.Len(entities, 2)
	assert.Equal(t, "sensor.inverter_active_power", entities[0].Id)
	assert.True(t, entities[0].Enabled())
	assert.False(t, entities[1].Enabled())

	assert.EqualValues(t, 4200, client.State("sensor.inverter_active_power").FloatOr(0))
	assert.EqualValues(t, 7, client.State("sensor.broken").FloatOr(7))
	assert.EqualValues(t, 3, client.State("sensor.never_seen").FloatOr(3))
}

func TestClientStateChangedEvents(t *testing.T) {
	require := require.New(t)

	fake := newFakeHass(t)
	client := NewClient(fake.url(), TEST_TOKEN, nil, testLogger)

	require.NoError(client.Connect())
	defer client.Close()

	fake.events <- stateChangedData{
		EntityId: "sensor.inverter_active_power",
		NewState: &stateObject{EntityId: "sensor.inverter_active_power", State: "4500"},
	}
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 4500, client.State("sensor.inverter_active_power").FloatOr(0))

	// entity removal clears the stored state
	fake.events <- stateChangedData{EntityId: "sensor.inverter_active_power", NewState: nil}
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 3, client.State("sensor.inverter_active_power").FloatOr(3))
}

func TestClientAuthRejected(t *testing.T) {
	fake := newFakeHass(t)
	client := NewClient(fake.url(), "wrong-token", nil, testLogger)

	err := client.Connect()
	assert.ErrorContains(t, err, "rejected")
	assert.False(t, client.Connected())
}

func TestClientConnectionLost(t *testing.T) {
	require := require.New(t)

	lost := make(chan error, 1)
	fake := newFakeHass(t)
	client := NewClient(fake.url(), TEST_TOKEN, func(err error) {
		lost <- err
	}, testLogger)

	require.NoError(client.Connect())

	fake.dropConnection()
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("connection lost callback never fired")
	}
	assert.False(t, client.Connected())
}

func TestClientCloseIsSilent(t *testing.T) {
	require := require.New(t)

	lost := make(chan error, 1)
	fake := newFakeHass(t)
	client := NewClient(fake.url(), TEST_TOKEN, func(err error) {
		lost <- err
	}, testLogger)

	require.NoError(client.Connect())
	require.NoError(client.Close())

	select {
	case err := <-lost:
		t.Fatalf("unexpected connection lost callback: %s", err)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWebsocketURL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ws://ha.local:8123/api/websocket", websocketURL("http://ha.local:8123"))
	assert.Equal("wss://ha.example.com/api/websocket", websocketURL("https://ha.example.com/"))
	assert.Equal("ws://ha.local:8123/api/websocket", websocketURL("ws://ha.local:8123/api/websocket"))
}

var testLogger = zap.Must(zap.NewDevelopment())
