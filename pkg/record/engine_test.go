package record

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/docsync/pkg/concurrent"
)

type call struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeTransport records every call and answers with respond.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []call
	respond func(c call) (*Response, error)
}

func (f *fakeTransport) Perform(_ context.Context, method, path string, body map[string]any) (*Response, error) {
	c := call{Method: method, Path: path, Body: body}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return f.respond(c)
}

func (f *fakeTransport) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func ok(status int, body map[string]any) func(call) (*Response, error) {
	return func(call) (*Response, error) {
		return &Response{StatusCode: status, Body: body}, nil
	}
}

const created = "2024-05-06T07:08:09.123Z"

func TestEngine_SaveCleanRecordIsNoop(t *testing.T) {
	tr := &fakeTransport{respond: ok(http.StatusCreated, nil)}
	engine := NewEngine(tr)

	require.NoError(t, engine.Save(context.Background(), New("GameScore")))
	require.Empty(t, tr.Calls())
}

func TestEngine_SaveCreates(t *testing.T) {
	tr := &fakeTransport{respond: ok(http.StatusCreated, map[string]any{
		FieldObjectID:  "X",
		FieldCreatedAt: created,
	})}
	engine := NewEngine(tr)

	r := New("GameScore")
	require.NoError(t, r.Set("score", 1337))
	require.NoError(t, r.Increment("plays", 1))
	require.NoError(t, engine.Save(context.Background(), r))

	calls := tr.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, http.MethodPost, calls[0].Method)
	require.Equal(t, "classes/GameScore", calls[0].Path)
	require.Equal(t, map[string]any{
		"score": 1337,
		"plays": map[string]any{"__op": "Increment", "amount": 1},
	}, calls[0].Body)

	want, err := time.Parse(time.RFC3339Nano, created)
	require.NoError(t, err)
	require.Equal(t, "X", r.ID())
	require.True(t, want.Equal(r.CreatedAt()))
	require.True(t, want.Equal(r.UpdatedAt()))
	require.False(t, r.IsDirty())
	require.Empty(t, r.PendingKeys())
	require.Empty(t, r.DirtyKeys())
	require.Equal(t, StateClean, r.State())
	require.Equal(t, 1337, r.GetInt("score"), "data survives the sync")
}

func TestEngine_SaveUpdates(t *testing.T) {
	tr := &fakeTransport{respond: ok(http.StatusOK, map[string]any{
		FieldUpdatedAt: "2024-06-01T00:00:00.000Z",
	})}
	engine := NewEngine(tr)

	r := persisted(t, "abc")
	createdAt := r.CreatedAt()
	require.NoError(t, r.ApplyServerData(map[string]any{"old": "value"}))
	r.Remove("old")
	require.NoError(t, r.Set("name", "new"))
	require.NoError(t, engine.Save(context.Background(), r))

	calls := tr.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, http.MethodPut, calls[0].Method)
	require.Equal(t, "classes/GameScore/abc", calls[0].Path)
	require.Equal(t, map[string]any{
		"old":  map[string]any{"__op": "Delete"},
		"name": "new",
	}, calls[0].Body)

	require.Equal(t, "abc", r.ID())
	require.Equal(t, createdAt, r.CreatedAt())
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), r.UpdatedAt())
	require.False(t, r.IsDirty())
}

func TestEngine_SaveFailureLeavesStateUntouched(t *testing.T) {
	cases := []struct {
		name    string
		respond func(call) (*Response, error)
		kind    error
		code    int
	}{
		{
			name:    "transport error",
			respond: func(call) (*Response, error) { return nil, errors.New("connection refused") },
			kind:    ErrTransportFailure,
			code:    CodeConnectionFailed,
		},
		{
			name: "server error",
			respond: ok(http.StatusNotFound, map[string]any{
				"code": float64(CodeObjectNotFound), "error": "object not found for update",
			}),
			kind: ErrServerFailure,
			code: CodeObjectNotFound,
		},
		{
			name:    "server error without body",
			respond: ok(http.StatusInternalServerError, nil),
			kind:    ErrServerFailure,
			code:    CodeOtherCause,
		},
		{
			name:    "malformed success",
			respond: ok(http.StatusOK, map[string]any{"unexpected": true}),
			kind:    ErrMalformedResponse,
			code:    CodeInvalidJSON,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := NewEngine(&fakeTransport{respond: tc.respond})

			fresh := New("GameScore")
			require.NoError(t, fresh.Set("score", 1))
			require.NoError(t, fresh.Increment("plays", 2))
			before := fresh.Payload()

			err := engine.Save(context.Background(), fresh)
			require.ErrorIs(t, err, tc.kind)
			var recErr *Error
			require.True(t, errors.As(err, &recErr))
			require.Equal(t, tc.code, recErr.Code)

			require.Empty(t, fresh.ID())
			require.True(t, fresh.IsDirty())
			require.Equal(t, StateDirty, fresh.State())
			require.Equal(t, before, fresh.Payload())
			require.Equal(t, []string{"score", "plays"}, fresh.DirtyKeys())

			existing := persisted(t, "abc")
			require.NoError(t, existing.Set("score", 2))
			require.Error(t, engine.Save(context.Background(), existing))
			require.Equal(t, "abc", existing.ID())
			require.True(t, existing.IsDirty())
		})
	}
}

func TestEngine_ConcurrentSavesCreateOnce(t *testing.T) {
	var creates atomic.Int64
	tr := &fakeTransport{respond: func(c call) (*Response, error) {
		if c.Method == http.MethodPost {
			n := creates.Add(1)
			time.Sleep(10 * time.Millisecond)
			return &Response{StatusCode: http.StatusCreated, Body: map[string]any{
				FieldObjectID:  fmt.Sprintf("id-%d", n),
				FieldCreatedAt: created,
			}}, nil
		}
		return &Response{StatusCode: http.StatusOK, Body: map[string]any{FieldUpdatedAt: created}}, nil
	}}
	engine := NewEngine(tr)

	r := New("GameScore")
	require.NoError(t, r.Set("score", 1))

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- engine.Save(context.Background(), r)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, creates.Load())
	require.Len(t, tr.Calls(), 1)
	require.Equal(t, "id-1", r.ID())
}

func TestEngine_MutationWaitsForInFlightSave(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	tr := &fakeTransport{respond: func(call) (*Response, error) {
		close(started)
		<-release
		return &Response{StatusCode: http.StatusCreated, Body: map[string]any{
			FieldObjectID: "X", FieldCreatedAt: created,
		}}, nil
	}}
	engine := NewEngine(tr)

	r := New("GameScore")
	require.NoError(t, r.Set("score", 1))

	saved := make(chan error, 1)
	go func() { saved <- engine.Save(context.Background(), r) }()
	<-started
	require.Equal(t, StateSyncing, r.State())
	require.Equal(t, 1, r.GetInt("score"), "reads do not wait for the network")

	setDone := make(chan error, 1)
	go func() { setDone <- r.Set("score", 2) }()

	select {
	case <-setDone:
		t.Fatal("mutation completed while a save was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-saved)
	require.NoError(t, <-setDone)

	require.True(t, r.IsDirty(), "edit made during the save must not be lost")
	op, _ := r.PendingOperation("score")
	require.Equal(t, SetOperation{Value: 2}, op)
}

func TestEngine_Delete(t *testing.T) {
	t.Run("Delete: unpersisted record is a no-op", func(t *testing.T) {
		tr := &fakeTransport{respond: ok(http.StatusOK, map[string]any{})}
		require.NoError(t, NewEngine(tr).Delete(context.Background(), New("GameScore")))
		require.Empty(t, tr.Calls())
	})

	t.Run("Delete: success resets identity and keeps data", func(t *testing.T) {
		tr := &fakeTransport{respond: ok(http.StatusOK, map[string]any{})}
		r := persisted(t, "abc")
		require.NoError(t, r.Set("score", 5))

		require.NoError(t, NewEngine(tr).Delete(context.Background(), r))
		calls := tr.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, http.MethodDelete, calls[0].Method)
		require.Equal(t, "classes/GameScore/abc", calls[0].Path)
		require.Nil(t, calls[0].Body)

		require.Empty(t, r.ID())
		require.True(t, r.CreatedAt().IsZero())
		require.True(t, r.UpdatedAt().IsZero())
		require.False(t, r.IsDirty())
		require.Equal(t, StateDeleted, r.State())
		require.Equal(t, 5, r.GetInt("score"))
	})

	t.Run("Delete: failure keeps the id", func(t *testing.T) {
		tr := &fakeTransport{respond: ok(http.StatusInternalServerError, map[string]any{"error": "down"})}
		r := persisted(t, "abc")

		err := NewEngine(tr).Delete(context.Background(), r)
		require.ErrorIs(t, err, ErrServerFailure)
		require.Contains(t, err.Error(), "down")
		require.Equal(t, "abc", r.ID())
	})

	t.Run("Delete: recreate gets a fresh id", func(t *testing.T) {
		ids := []string{"first", "second"}
		var n atomic.Int64
		tr := &fakeTransport{respond: func(c call) (*Response, error) {
			if c.Method == http.MethodPost {
				id := ids[n.Add(1)-1]
				return &Response{StatusCode: http.StatusCreated, Body: map[string]any{
					FieldObjectID: id, FieldCreatedAt: created,
				}}, nil
			}
			return &Response{StatusCode: http.StatusOK, Body: map[string]any{}}, nil
		}}
		engine := NewEngine(tr)
		ctx := context.Background()

		r := New("GameScore")
		require.NoError(t, r.Set("score", 1))
		require.NoError(t, engine.Save(ctx, r))
		require.Equal(t, "first", r.ID())
		require.NoError(t, engine.Delete(ctx, r))
		require.NoError(t, r.Set("score", 2))
		require.NoError(t, engine.Save(ctx, r))
		require.Equal(t, "second", r.ID())
	})
}

func TestEngine_Refresh(t *testing.T) {
	tr := &fakeTransport{respond: ok(http.StatusOK, map[string]any{
		FieldObjectID:  "abc",
		FieldCreatedAt: "2024-01-01T00:00:00.000Z",
		FieldUpdatedAt: "2024-02-01T00:00:00.000Z",
		"score":        int64(40),
		"name":         "server",
	})}
	engine := NewEngine(tr)

	r := persisted(t, "abc")
	require.NoError(t, r.Increment("score", 2))
	require.NoError(t, engine.Refresh(context.Background(), r))

	require.Equal(t, []call{{Method: http.MethodGet, Path: "classes/GameScore/abc"}}, tr.Calls())
	require.Equal(t, "server", r.GetString("name"))
	require.Equal(t, int64(42), r.GetInt64("score"), "pending increment re-applied on server value")
	require.True(t, r.IsDirty())

	err := engine.Refresh(context.Background(), New("GameScore"))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEngine_SaveAll(t *testing.T) {
	var n atomic.Int64
	tr := &fakeTransport{respond: func(call) (*Response, error) {
		return &Response{StatusCode: http.StatusCreated, Body: map[string]any{
			FieldObjectID:  fmt.Sprintf("id-%d", n.Add(1)),
			FieldCreatedAt: created,
		}}, nil
	}}
	engine := NewEngine(tr)

	records := make([]*Record, 5)
	for i := range records {
		records[i] = New("GameScore")
		require.NoError(t, records[i].Set("i", i))
	}

	require.NoError(t, engine.SaveAll(context.Background(), records...))
	seen := make(map[string]bool)
	for _, r := range records {
		require.NotEmpty(t, r.ID())
		require.False(t, seen[r.ID()])
		seen[r.ID()] = true
	}
	require.Len(t, tr.Calls(), 5)
}

func TestEngine_Async(t *testing.T) {
	t.Run("SaveAsync: callback exactly once", func(t *testing.T) {
		tr := &fakeTransport{respond: ok(http.StatusCreated, map[string]any{
			FieldObjectID: "X", FieldCreatedAt: created,
		})}
		runner := concurrent.NewRunner(2, nil)
		engine := NewEngine(tr, WithSubmitter(runner))

		r := New("GameScore")
		require.NoError(t, r.Set("score", 1))

		var calls atomic.Int64
		done := make(chan error, 2)
		require.NoError(t, engine.SaveAsync(context.Background(), r, func(err error) {
			calls.Add(1)
			done <- err
		}))

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("callback not called")
		}
		runner.Wait()
		require.EqualValues(t, 1, calls.Load())
		require.Equal(t, "X", r.ID())
	})

	t.Run("DeleteAsync: error reaches the callback", func(t *testing.T) {
		tr := &fakeTransport{respond: func(call) (*Response, error) { return nil, errors.New("offline") }}
		runner := concurrent.NewRunner(0, nil)
		engine := NewEngine(tr, WithSubmitter(runner))

		r := persisted(t, "abc")
		var got error
		require.NoError(t, engine.DeleteAsync(context.Background(), r, func(err error) { got = err }))
		runner.Wait()
		require.ErrorIs(t, got, ErrTransportFailure)
		require.Equal(t, "abc", r.ID())
	})

	t.Run("SaveAsync: nil callback still runs", func(t *testing.T) {
		tr := &fakeTransport{respond: ok(http.StatusCreated, map[string]any{
			FieldObjectID: "X", FieldCreatedAt: created,
		})}
		runner := concurrent.NewRunner(0, nil)
		engine := NewEngine(tr, WithSubmitter(runner))

		r := New("GameScore")
		require.NoError(t, r.Set("score", 1))
		require.NoError(t, engine.SaveAsync(context.Background(), r, nil))
		runner.Wait()
		require.Equal(t, "X", r.ID())
	})

	t.Run("SaveAsync: overlapping saves on one record create once", func(t *testing.T) {
		var creates atomic.Int64
		tr := &fakeTransport{respond: func(c call) (*Response, error) {
			if c.Method == http.MethodPost {
				creates.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			return &Response{StatusCode: http.StatusCreated, Body: map[string]any{
				FieldObjectID: "X", FieldCreatedAt: created, FieldUpdatedAt: created,
			}}, nil
		}}
		runner := concurrent.NewRunner(0, nil)
		engine := NewEngine(tr, WithSubmitter(runner))

		r := New("GameScore")
		require.NoError(t, r.Set("score", 1))
		for i := 0; i < 8; i++ {
			require.NoError(t, engine.SaveAsync(context.Background(), r, nil))
		}
		runner.Wait()
		require.EqualValues(t, 1, creates.Load())
	})

	t.Run("SaveAsync: nil record rejected synchronously", func(t *testing.T) {
		engine := NewEngine(&fakeTransport{respond: ok(http.StatusOK, nil)})
		require.ErrorIs(t, engine.SaveAsync(context.Background(), nil, nil), ErrInvalidArgument)
		require.ErrorIs(t, engine.DeleteAsync(context.Background(), nil, nil), ErrInvalidArgument)
	})
}
