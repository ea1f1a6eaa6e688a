package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordedCommands struct {
	mu   sync.Mutex
	cmds [][]any
}

func (r *recordedCommands) add(cmd []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
}

func (r *recordedCommands) last() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cmds) == 0 {
		return nil
	}
	return r.cmds[len(r.cmds)-1]
}

func newTestUpstash(t *testing.T, reply func(cmd []any) string, opts ...StoreOption) (*UpstashRedisStore, *recordedCommands) {
	t.Helper()

	rec := &recordedCommands{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
			return
		}
		rec.add(cmd)
		fmt.Fprint(w, reply(cmd))
	}))
	t.Cleanup(server.Close)

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store, rec
}

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	got, err := store.redisKey("abc", "context")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "retail:conv:abc:context" {
		t.Fatalf("redisKey() = %q, want %q", got, "retail:conv:abc:context")
	}
}

func TestUpstashRedisStoreRedisKeyEmptyConversation(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	_, err := store.redisKey("   ", "context")
	if !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidConversation", err)
	}
}

func TestUpstashRedisStoreSaveContextSetsWithTTL(t *testing.T) {
	t.Parallel()

	store, rec := newTestUpstash(t, func([]any) string { return `{"result":"OK"}` }, WithTTL(90*time.Minute))

	c := NewContext("conv-1", 4, time.Now())
	if err := store.SaveContext(context.Background(), c); err != nil {
		t.Fatalf("SaveContext() error = %v", err)
	}

	cmd := rec.last()
	if len(cmd) != 5 {
		t.Fatalf("unexpected command: %#v", cmd)
	}
	if cmd[0] != "SET" || cmd[1] != "retail:conv:conv-1:context" {
		t.Fatalf("command = %v, want SET on context key", cmd[:2])
	}
	if cmd[3] != "EX" || cmd[4] != float64(5400) {
		t.Fatalf("expiry = %v %v, want EX 5400", cmd[3], cmd[4])
	}
}

func TestUpstashRedisStoreLoadContext(t *testing.T) {
	t.Parallel()

	seed := NewContext("conv-2", 6, time.Now())
	seed.CustomerID = "cust-9"
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	store, rec := newTestUpstash(t, func([]any) string { return fmt.Sprintf(`{"result":%s}`, encoded) })

	c, err := store.LoadContext(context.Background(), "conv-2")
	if err != nil {
		t.Fatalf("LoadContext() error = %v", err)
	}
	if c.CustomerID != "cust-9" || c.WindowSize != 6 {
		t.Fatalf("LoadContext() = %+v", c)
	}
	if cmd := rec.last(); cmd[0] != "GET" || cmd[1] != "retail:conv:conv-2:context" {
		t.Fatalf("command = %v, want GET on context key", cmd)
	}
}

func TestUpstashRedisStoreLoadContextMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestUpstash(t, func([]any) string { return `{"result":null}` })

	_, err := store.LoadContext(context.Background(), "conv-3")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("LoadContext() error = %v, want ErrStateNotFound", err)
	}
}

func TestUpstashRedisStoreHistoryRoundTrip(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		pushed []string
	)
	store, rec := newTestUpstash(t, func(cmd []any) string {
		mu.Lock()
		defer mu.Unlock()
		switch cmd[0] {
		case "RPUSH":
			pushed = append(pushed, cmd[2].(string))
			return fmt.Sprintf(`{"result":%d}`, len(pushed))
		case "LRANGE":
			raw, _ := json.Marshal(pushed)
			return fmt.Sprintf(`{"result":%s}`, raw)
		}
		return `{"error":"unexpected command"}`
	})

	ctx := context.Background()
	for i, text := range []string{"hello", "hi there"} {
		role, agent := TurnCustomer, ""
		if i == 1 {
			role, agent = TurnAgent, "concierge"
		}
		if err := store.AppendHistory(ctx, "conv-4", Turn{ID: fmt.Sprint(i), Role: role, Agent: agent, Text: text}); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
	}

	turns, err := store.History(ctx, "conv-4")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "hello" || turns[1].Agent != "concierge" {
		t.Fatalf("History() = %+v", turns)
	}
	if cmd := rec.last(); cmd[0] != "LRANGE" || cmd[1] != "retail:conv:conv-4:history" {
		t.Fatalf("command = %v, want LRANGE on history key", cmd)
	}
}

func TestUpstashRedisStoreSurfacesRedisErrors(t *testing.T) {
	t.Parallel()

	store, _ := newTestUpstash(t, func([]any) string { return `{"error":"WRONGTYPE"}` })

	err := store.AppendHistory(context.Background(), "conv-5", Turn{Role: TurnCustomer, Text: "x"})
	if err == nil || err.Error() != "WRONGTYPE" {
		t.Fatalf("AppendHistory() error = %v, want WRONGTYPE", err)
	}
}
