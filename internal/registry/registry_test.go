package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jneschisi/dart-frog/internal/emitter"
	"github.com/jneschisi/dart-frog/internal/protocol"
	"github.com/jneschisi/dart-frog/internal/protocol/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource replays traffic the way a daemon session would dispatch it.
type fakeSource struct {
	requests  emitter.Emitter[*protocol.Request]
	responses emitter.Emitter[*protocol.Response]
	events    emitter.Emitter[*protocol.Event]
}

func (f *fakeSource) OnRequest(fn func(*protocol.Request)) emitter.Subscription {
	return f.requests.Subscribe(fn)
}

func (f *fakeSource) OnResponse(fn func(*protocol.Response)) emitter.Subscription {
	return f.responses.Subscribe(fn)
}

func (f *fakeSource) OnEvent(fn func(*protocol.Event)) emitter.Subscription {
	return f.events.Subscribe(fn)
}

func (f *fakeSource) start(id string, port, vmPort int) {
	f.requests.Emit(domain.NewStart(id, domain.StartParams{
		WorkingDirectory:  "/srv/api",
		Port:              port,
		DartVMServicePort: vmPort,
	}))
}

func (f *fakeSource) event(name string, params string) {
	f.events.Emit(&protocol.Event{Event: name, Params: json.RawMessage(params)})
}

func (f *fakeSource) starting(requestID, appID string) {
	f.event(domain.EventApplicationStarting, `{"applicationId":"`+appID+`","requestId":"`+requestID+`"}`)
}

func (f *fakeSource) vmService(requestID, appID, uri string) {
	f.event(domain.EventLoggerInfo, `{"applicationId":"`+appID+`","requestId":"`+requestID+`","message":"`+VMServiceURIPrefix+uri+`"}`)
}

func (f *fakeSource) exit(requestID, appID string) {
	f.event(domain.EventApplicationExit, `{"applicationId":"`+appID+`","requestId":"`+requestID+`","exitCode":0}`)
}

// recorder collects registry notifications in order.
type recorder struct {
	names []string
	apps  []Application
}

func record(r *Registry, names ...string) *recorder {
	rec := &recorder{}
	for _, name := range names {
		name := name
		r.On(name, func(a Application) {
			rec.names = append(rec.names, name)
			rec.apps = append(rec.apps, a)
		})
	}
	return rec
}

func TestRegistrationLifecycle(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, EventAdd, EventRemove, ChangeEvent(FieldVMServiceURI))

	src.start("3", 8080, 8181)
	assert.Zero(t, r.Len(), "start request alone does not register")

	src.starting("3", "7")
	app, ok := r.Get("7")
	require.True(t, ok)
	assert.Equal(t, Application{ID: "7", WorkingDirectory: "/srv/api", Port: 8080, DebugPort: 8181, RequestID: "3"}, app)

	src.vmService("3", "7", "ws://127.0.0.1:9000/abc=/")
	app, _ = r.Get("7")
	assert.Equal(t, "ws://127.0.0.1:9000/abc=/", app.VMServiceURI)

	src.exit("3", "7")
	_, ok = r.Get("7")
	assert.False(t, ok)

	assert.Equal(t, []string{EventAdd, ChangeEvent(FieldVMServiceURI), EventRemove}, rec.names)
	assert.Equal(t, "ws://127.0.0.1:9000/abc=/", rec.apps[1].VMServiceURI)
	assert.Equal(t, "7", rec.apps[2].ID)
}

func TestDuplicateStartingIsIgnored(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, EventAdd)

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	src.starting("3", "7")

	assert.Equal(t, 1, r.Len())
	assert.Len(t, rec.names, 1)
}

func TestStartingWithoutStartRequestIsIgnored(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.starting("42", "7")
	assert.Zero(t, r.Len())
}

func TestApplicationIDAlreadyTaken(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.start("1", 8080, 8181)
	src.start("2", 8081, 8182)
	src.starting("1", "7")
	src.starting("2", "7")

	app, ok := r.Get("7")
	require.True(t, ok)
	assert.Equal(t, 8080, app.Port)
	assert.Equal(t, 1, r.Len())
}

func TestSecondExitIsNoOp(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, EventRemove)

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	src.exit("3", "7")
	src.exit("3", "7")

	assert.Len(t, rec.names, 1)
}

func TestVMServiceURIBeforeStartingRidesWithAdd(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, EventAdd, ChangeEvent(FieldVMServiceURI))

	src.start("3", 8080, 8181)
	src.vmService("3", "", "ws://127.0.0.1:9000/abc=/")
	src.starting("3", "7")

	require.Equal(t, []string{EventAdd}, rec.names)
	assert.Equal(t, "ws://127.0.0.1:9000/abc=/", rec.apps[0].VMServiceURI)
}

func TestOtherLoggerLinesAreIgnored(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, ChangeEvent(FieldVMServiceURI))

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	src.event(domain.EventLoggerInfo, `{"applicationId":"7","requestId":"3","message":"[hotreload] Hot reload is enabled."}`)

	assert.Empty(t, rec.names)
	app, _ := r.Get("7")
	assert.Empty(t, app.VMServiceURI)
}

func TestSameVMServiceURIDoesNotNotifyTwice(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, ChangeEvent(FieldVMServiceURI))

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	src.vmService("3", "7", "ws://127.0.0.1:9000/abc=/")
	src.vmService("3", "7", "ws://127.0.0.1:9000/abc=/")

	assert.Len(t, rec.names, 1)
}

func TestSuccessfulStopRemoves(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()
	rec := record(r, EventRemove)

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	src.requests.Emit(domain.NewStop("4", "7"))
	src.responses.Emit(&protocol.Response{ID: "4", Result: json.RawMessage(`{"applicationId":"7","exitCode":0}`)})

	assert.Zero(t, r.Len())
	assert.Equal(t, []string{EventRemove}, rec.names)

	// The exit event that follows finds nothing left to remove.
	src.exit("3", "7")
	assert.Len(t, rec.names, 1)
}

func TestFailedStopKeepsApplication(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	src.requests.Emit(domain.NewStop("4", "7"))
	src.responses.Emit(&protocol.Response{ID: "4", Error: json.RawMessage(`{"message":"busy"}`)})

	assert.Equal(t, 1, r.Len())
}

func TestFailedStartDropsEntry(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.start("3", 8080, 8181)
	src.responses.Emit(&protocol.Response{ID: "3", Error: json.RawMessage(`{"message":"port in use"}`)})
	src.starting("3", "7")

	assert.Zero(t, r.Len())
}

func TestAllKeepsRegistrationOrder(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.start("1", 8080, 8181)
	src.start("2", 8081, 8182)
	src.start("3", 8082, 8183)
	src.starting("2", "b")
	src.starting("1", "a")
	src.starting("3", "c")
	src.exit("1", "a")

	var ids []string
	for _, app := range r.All() {
		ids = append(ids, app.ID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestCloseDetaches(t *testing.T) {
	src := &fakeSource{}
	r := New(src)

	src.start("3", 8080, 8181)
	src.starting("3", "7")
	r.Close()
	src.exit("3", "7")

	assert.Equal(t, 1, r.Len())
	assert.Zero(t, src.events.Len())
}

func TestWaitFor(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.start("3", 8080, 8181)

	got := make(chan Application, 1)
	go func() {
		app, err := r.WaitFor(context.Background(), "7")
		if err == nil {
			got <- app
		}
		close(got)
	}()

	// WaitFor subscribes before checking, so either ordering is fine.
	time.Sleep(5 * time.Millisecond)
	src.starting("3", "7")

	select {
	case app := <-got:
		assert.Equal(t, "7", app.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor did not return")
	}

	// Already registered: returns at once.
	app, err := r.WaitFor(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 8080, app.Port)
}

func TestWaitForVMServiceURI(t *testing.T) {
	src := &fakeSource{}
	r := New(src)
	defer r.Close()

	src.start("3", 8080, 8181)
	src.starting("3", "7")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.WaitForVMServiceURI(ctx, "7")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	src.vmService("3", "7", "ws://127.0.0.1:9000/abc=/")
	app, err := r.WaitForVMServiceURI(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9000/abc=/", app.VMServiceURI)
}

func TestAddress(t *testing.T) {
	app := Application{Port: 8080}
	assert.Equal(t, "http://localhost:8080", app.Address())
}
