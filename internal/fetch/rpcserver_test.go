package fetch

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// rpcServer is a JSON-RPC test server answering by method name.
// A handler returns either a raw result or an error object.
type rpcServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls []string
}

type rpcReply struct {
	Result string
	Code   int
	Msg    string
}

func newRPCServer(t *testing.T, handlers map[string]func(params json.RawMessage) rpcReply) *rpcServer {
	t.Helper()
	s := &rpcServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.Unmarshal(body, &req))

		s.mu.Lock()
		s.calls = append(s.calls, req.Method)
		s.mu.Unlock()

		id := string(req.ID)
		if id == "" {
			id = "1"
		}

		handler, ok := handlers[req.Method]
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","id":` + id + `,"error":{"code":-32601,"message":"Method not found"}}`))
			return
		}

		reply := handler(req.Params)
		w.Header().Set("Content-Type", "application/json")
		if reply.Code != 0 {
			msg, _ := json.Marshal(reply.Msg)
			w.Write([]byte(`{"jsonrpc":"2.0","id":` + id + `,"error":{"code":` + itoa(reply.Code) + `,"message":` + string(msg) + `}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + id + `,"result":` + reply.Result + `}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *rpcServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func result(raw string) func(json.RawMessage) rpcReply {
	return func(json.RawMessage) rpcReply { return rpcReply{Result: raw} }
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
