package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ride-convoy/internal/domain/user"
	"ride-convoy/internal/general/contracts"
	"ride-convoy/internal/general/jwt"

	"github.com/gorilla/websocket"
)

// authenticate checks the client's first frame the way the relay does.
func authenticate(frame []byte, mgr *jwt.Manager) error {
	var msg jwt.ClientAuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return err
	}
	if msg.Type != "auth" || !strings.HasPrefix(msg.Token, "Bearer ") {
		return errors.New("bad auth frame")
	}
	_, err := mgr.Verify(msg.Token, user.RoleRider, user.RoleAdmin)
	return err
}

// relayServer authenticates the first frame, answers, then echoes every
// frame back with its type prefixed by "echo:".
func relayServer(t *testing.T, mgr *jwt.Manager) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_, first, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := authenticate(first, mgr); err != nil {
			_ = ws.WriteJSON(map[string]any{"type": "auth_error", "error": "invalid token"})
			return
		}
		_ = ws.WriteJSON(map[string]any{"type": "auth_success"})

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				return
			}
			frame, err := contracts.DecodeFrame(payload)
			if err != nil {
				continue
			}
			frame.Type = "echo:" + frame.Type
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialAuthenticatesAndExchangesFrames(t *testing.T) {
	mgr, err := jwt.NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := mgr.IssueRiderToken("u1", "Ann", user.RoleRider)
	if err != nil {
		t.Fatal(err)
	}
	srv := relayServer(t, mgr)

	d := NewDialer(Options{URL: wsURL(srv), Token: token, DialTimeout: 2 * time.Second}, nil)
	conn, err := d.Dial(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame, _ := contracts.NewFrame(contracts.EventJoinRide, contracts.JoinRide{RideID: "ride-1"})
	if err := conn.Send(context.Background(), frame); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Type != "echo:joinRide" {
		t.Fatalf("type = %q", got.Type)
	}

	var join contracts.JoinRide
	if err := contracts.Decode(got.Data, &join); err != nil || join.RideID != "ride-1" {
		t.Fatalf("payload = %+v, %v", join, err)
	}
}

func TestDialRejectsBadToken(t *testing.T) {
	mgr, _ := jwt.NewManager("test-secret", time.Hour)
	other, _ := jwt.NewManager("other-secret", time.Hour)
	token, _, _ := other.IssueRiderToken("u1", "Ann", user.RoleRider)
	srv := relayServer(t, mgr)

	d := NewDialer(Options{URL: wsURL(srv), Token: token, DialTimeout: 2 * time.Second}, nil)
	_, err := d.Dial(context.Background(), "ride-1")
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
}

func TestDialWithoutTokenFails(t *testing.T) {
	mgr, _ := jwt.NewManager("test-secret", time.Hour)
	srv := relayServer(t, mgr)

	d := NewDialer(Options{URL: wsURL(srv), DialTimeout: 2 * time.Second}, nil)
	if _, err := d.Dial(context.Background(), "ride-1"); !errors.Is(err, jwt.ErrEmptyToken) {
		t.Fatalf("err = %v, want ErrEmptyToken", err)
	}
}

func TestCloseUnblocksReceive(t *testing.T) {
	mgr, _ := jwt.NewManager("test-secret", time.Hour)
	token, _, _ := mgr.IssueRiderToken("u1", "Ann", user.RoleRider)
	srv := relayServer(t, mgr)

	d := NewDialer(Options{URL: wsURL(srv), Token: token, DialTimeout: 2 * time.Second}, nil)
	conn, err := d.Dial(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := conn.Receive(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = conn.Close()
	_ = conn.Close()

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("receive returned nil error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not unblock")
	}

	frame, _ := contracts.NewFrame("tick", nil)
	if err := conn.Send(context.Background(), frame); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close = %v, want ErrClosed", err)
	}
}

func TestRedactQuery(t *testing.T) {
	if got := redactQuery("wss://relay.example/ws?token=abc"); got != "wss://relay.example/ws" {
		t.Fatalf("got %q", got)
	}
}
