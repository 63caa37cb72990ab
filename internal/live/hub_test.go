package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

func dial(t *testing.T, hub *Hub, user attendance.User) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, user)
	}))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublishRespectsScope(t *testing.T) {
	hub := NewHub(nil)
	admin := dial(t, hub, attendance.User{ID: "user1", Role: attendance.RoleSuperAdmin})
	teacher := dial(t, hub, attendance.User{ID: "user3", Role: attendance.RoleTeacher, Grade: 5})
	waitClients(t, hub, 2)

	hub.Publish(attendance.Entry{
		Record:  attendance.Record{StudentID: "S001", Status: attendance.StatusPresent},
		Student: attendance.Student{ID: "S001", Name: "Liam Johnson", Grade: 3},
	})
	hub.Publish(attendance.Entry{
		Record:  attendance.Record{StudentID: "S002", Status: attendance.StatusPresent},
		Student: attendance.Student{ID: "S002", Name: "Olivia Smith", Grade: 5},
	})

	var msg struct {
		Event string           `json:"event"`
		Data  attendance.Entry `json:"data"`
	}
	_ = admin.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := admin.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Event != EventRecordUpdated || msg.Data.StudentID != "S001" {
		t.Fatalf("admin got %+v", msg)
	}

	_ = teacher.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := teacher.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Data.StudentID != "S002" {
		t.Fatalf("teacher should only see grade 5, got %+v", msg.Data)
	}
}

func TestDisconnectRemovesClient(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, hub, attendance.User{ID: "user1", Role: attendance.RoleAdmin})
	waitClients(t, hub, 1)
	conn.Close()
	waitClients(t, hub, 0)
}
