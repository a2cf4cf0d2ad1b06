package connhandler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"agenthub/internal/logging"
	"agenthub/internal/registry"
	"agenthub/internal/session"
	"agenthub/pkg/types"
)

func newTestHandlerServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	return newTestHandlerServerWithOverlays(t, nil)
}

func newTestHandlerServerWithOverlays(t *testing.T, deviceOverlays map[string]map[string]interface{}) (*httptest.Server, *registry.Registry) {
	t.Helper()
	log := logging.Nop()
	reg := registry.New(log)
	sessions := session.NewManager(log, 0)
	h := New(reg, sessions, 500*time.Millisecond, time.Second, time.Second, 16, "linux", deviceOverlays, log)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg *types.Message) {
	t.Helper()
	data, err := types.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) *types.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	msg, err := types.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestRegistrationTimeoutClosesConnection(t *testing.T) {
	srv, _ := newTestHandlerServer(t)
	conn := dial(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected the connection to close after the registration timeout")
	}
}

func TestInvalidFirstMessageIsRejected(t *testing.T) {
	srv, _ := newTestHandlerServer(t)
	conn := dial(t, srv)
	defer conn.Close()

	sendMsg(t, conn, &types.Message{Type: types.TypeHeartbeat})
	msg := readMsg(t, conn)
	if msg.Type != types.TypeRegisterError {
		t.Fatalf("expected REGISTER_ERROR, got %s", msg.Type)
	}
}

func TestSuccessfulRegistrationConfirms(t *testing.T) {
	srv, reg := newTestHandlerServer(t)
	conn := dial(t, srv)
	defer conn.Close()

	sendMsg(t, conn, &types.Message{
		Type:       types.TypeRegister,
		ClientID:   "dev-A",
		ClientType: string(types.ClientKindDevice),
		Platform:   "linux",
	})
	msg := readMsg(t, conn)
	if msg.Type != types.TypeRegisterConfirm || msg.ClientID != "dev-A" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, ok := reg.GetDevice("dev-A"); !ok {
		t.Fatal("expected dev-A to be present in the registry")
	}
}

func TestDeviceOverlayMergedIntoSystemInfo(t *testing.T) {
	overlays := map[string]map[string]interface{}{
		"dev-A": {"tags": []string{"gpu"}},
	}
	srv, reg := newTestHandlerServerWithOverlays(t, overlays)
	conn := dial(t, srv)
	defer conn.Close()

	sendMsg(t, conn, &types.Message{
		Type: types.TypeRegister, ClientID: "dev-A", ClientType: string(types.ClientKindDevice), Platform: "linux",
		Metadata: map[string]interface{}{"tags": []string{"cpu"}},
	})
	readMsg(t, conn) // REGISTER_CONFIRM

	info, ok := reg.DeviceSystemInfo("dev-A")
	if !ok {
		t.Fatal("expected dev-A system_info to be present")
	}
	tags, ok := info["tags"].([]string)
	if !ok || len(tags) != 1 || tags[0] != "gpu" {
		t.Fatalf("expected overlay tags [gpu] to win, got %v", info["tags"])
	}
}

func TestHeartbeatIsAcked(t *testing.T) {
	srv, _ := newTestHandlerServer(t)
	conn := dial(t, srv)
	defer conn.Close()

	sendMsg(t, conn, &types.Message{
		Type: types.TypeRegister, ClientID: "dev-A", ClientType: string(types.ClientKindDevice), Platform: "linux",
	})
	readMsg(t, conn) // REGISTER_CONFIRM

	sendMsg(t, conn, &types.Message{Type: types.TypeHeartbeat, Timestamp: 1})
	msg := readMsg(t, conn)
	if msg.Type != types.TypeHeartbeatAck {
		t.Fatalf("expected HEARTBEAT_ACK, got %s", msg.Type)
	}
}

func TestConstellationRegistrationRejectsUnknownTarget(t *testing.T) {
	srv, _ := newTestHandlerServer(t)
	conn := dial(t, srv)
	defer conn.Close()

	sendMsg(t, conn, &types.Message{
		Type: types.TypeRegister, ClientID: "orc-1", ClientType: string(types.ClientKindConstellation),
		Platform: "linux", TargetID: "nobody",
	})
	msg := readMsg(t, conn)
	if msg.Type != types.TypeRegisterError {
		t.Fatalf("expected REGISTER_ERROR for unknown target, got %s", msg.Type)
	}
}

func TestDisconnectRemovesClientFromRegistry(t *testing.T) {
	srv, reg := newTestHandlerServer(t)
	conn := dial(t, srv)

	sendMsg(t, conn, &types.Message{
		Type: types.TypeRegister, ClientID: "dev-A", ClientType: string(types.ClientKindDevice), Platform: "linux",
	})
	readMsg(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Get("dev-A"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected dev-A to be removed from the registry after disconnect")
}
