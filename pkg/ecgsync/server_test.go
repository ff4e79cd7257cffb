package ecgsync_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
}

type serverRecord struct {
	id         string
	timestamp  string
	annotation []string
}

// fakeServer speaks the ECG event protocol over websocket.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	records  []*serverRecord
	received []string
	conns    []*websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	s := &fakeServer{
		records: []*serverRecord{
			{id: "a", timestamp: "02.01.2018 10:00:00"},
			{id: "b", timestamp: "01.01.2018 10:00:00"},
		},
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.serve(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var in wireFrame
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, in.Event)
		s.mu.Unlock()

		var err error
		switch in.Event {
		case "ECG_GET_LIST":
			err = s.write(conn, "ECG_GOT_LIST", s.list())
		case "ECG_GET_ANNOTATION_LIST":
			err = s.write(conn, "ECG_GOT_ANNOTATION_LIST", []map[string]interface{}{
				{"id": "Rhythm", "annotations": []string{"AF", "Sinus"}},
				{"id": "Normal", "annotations": []string{}},
			})
		case "ECG_GET_COMMON_ANNOTATION_LIST":
			err = s.write(conn, "ECG_GOT_COMMON_ANNOTATION_LIST", map[string]interface{}{
				"annotations": []string{"Normal"},
			})
		case "ECG_GET_ITEM_DATA":
			var req struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(in.Data, &req)
			rec := s.find(req.ID)
			if rec == nil {
				err = s.write(conn, "ERROR", "Invalid sha "+req.ID)
				break
			}
			err = s.write(conn, "ECG_GOT_ITEM_DATA", map[string]interface{}{
				"id":         req.ID,
				"signal":     [][]float64{{0, 1, 0}, {1, 0, 1}},
				"frequency":  250,
				"signame":    []string{"I", "II"},
				"units":      []string{"mV", "mV"},
				"annotation": rec.annotation,
			})
		case "ECG_SET_ANNOTATION":
			var req struct {
				ID         string   `json:"id"`
				Annotation []string `json:"annotation"`
			}
			_ = json.Unmarshal(in.Data, &req)
			s.mu.Lock()
			for _, r := range s.records {
				if r.id == req.ID {
					r.annotation = req.Annotation
				}
			}
			s.mu.Unlock()
		case "ECG_DUMP_SIGNALS":
			s.mu.Lock()
			kept := s.records[:0]
			for _, r := range s.records {
				if len(r.annotation) == 0 {
					kept = append(kept, r)
				}
			}
			s.records = kept
			s.mu.Unlock()
			err = s.write(conn, "ECG_GOT_LIST", s.list())
		}
		if err != nil {
			return
		}
	}
}

func (s *fakeServer) write(conn *websocket.Conn, event string, data interface{}) error {
	return conn.WriteJSON(map[string]interface{}{"event": event, "data": data})
}

func (s *fakeServer) list() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, map[string]interface{}{
			"id":          r.id,
			"timestamp":   r.timestamp,
			"isAnnotated": len(r.annotation) > 0,
		})
	}
	return out
}

func (s *fakeServer) find(id string) *serverRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (s *fakeServer) annotation(id string) []string {
	if r := s.find(id); r != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]string(nil), r.annotation...)
	}
	return nil
}

func (s *fakeServer) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.received {
		if e == event {
			n++
		}
	}
	return n
}

// dropConnections closes every open connection from the server side.
func (s *fakeServer) dropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}
