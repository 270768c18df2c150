// Package registry keeps the set of running dev server applications, derived
// only from the traffic of a daemon session.
//
// A dev_server.start request creates an unidentified entry keyed by its
// request id. The matching dev_server.applicationStarting event supplies the
// daemon's application id and registers it ("add"). A loggerInfo line
// announcing the VM service fills in VMServiceURI ("change:vmServiceUri").
// dev_server.applicationExit, or a successful dev_server.stop, removes it
// ("remove"). Applications are only ever looked up by the daemon's id.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jneschisi/dart-frog/internal/emitter"
	"github.com/jneschisi/dart-frog/internal/logging"
	"github.com/jneschisi/dart-frog/internal/protocol"
	"github.com/jneschisi/dart-frog/internal/protocol/domain"
)

// VMServiceURIPrefix starts the log line that announces the Dart VM service.
const VMServiceURIPrefix = "The Dart VM service is listening on "

const (
	EventAdd    = "add"
	EventRemove = "remove"

	FieldVMServiceURI = "vmServiceUri"
)

// ChangeEvent returns the notification name for a field change.
func ChangeEvent(field string) string {
	return "change:" + field
}

// Source is the part of a daemon session the registry listens to.
type Source interface {
	OnRequest(fn func(*protocol.Request)) emitter.Subscription
	OnResponse(fn func(*protocol.Response)) emitter.Subscription
	OnEvent(fn func(*protocol.Event)) emitter.Subscription
}

type entry struct {
	app        Application
	registered bool
}

// Registry is safe for concurrent reads. It is written only by the session's
// dispatch path.
type Registry struct {
	log zerolog.Logger
	sub emitter.Group

	mu        sync.Mutex
	starts    map[string]*entry // start request id -> entry
	byID      map[string]*entry // daemon application id -> registered entry
	order     []string          // registered ids, oldest first
	stopping  map[string]string // stop request id -> application id
	listeners map[string]*emitter.Emitter[Application]
}

// New subscribes a registry to source. Call Close to detach it.
func New(source Source) *Registry {
	r := &Registry{
		log:       logging.Component("registry"),
		starts:    make(map[string]*entry),
		byID:      make(map[string]*entry),
		stopping:  make(map[string]string),
		listeners: make(map[string]*emitter.Emitter[Application]),
	}
	r.sub = emitter.Group{
		source.OnRequest(r.onRequest),
		source.OnResponse(r.onResponse),
		source.OnEvent(r.onEvent),
	}
	return r
}

// Close stops listening to the session. The current table is kept.
func (r *Registry) Close() {
	r.sub.Cancel()
}

// All returns the registered applications in registration order.
func (r *Registry) All() []Application {
	r.mu.Lock()
	defer r.mu.Unlock()

	apps := make([]Application, 0, len(r.order))
	for _, id := range r.order {
		apps = append(apps, r.byID[id].app)
	}
	return apps
}

// Get returns the registered application with the daemon-assigned id.
func (r *Registry) Get(id string) (Application, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return Application{}, false
	}
	return e.app, true
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// On subscribes fn to "add", "remove" or ChangeEvent(field).
func (r *Registry) On(name string, fn func(Application)) emitter.Subscription {
	r.mu.Lock()
	em, ok := r.listeners[name]
	if !ok {
		em = &emitter.Emitter[Application]{}
		r.listeners[name] = em
	}
	r.mu.Unlock()

	return em.Subscribe(fn)
}

func (r *Registry) emit(name string, app Application) {
	r.mu.Lock()
	em := r.listeners[name]
	r.mu.Unlock()

	if em != nil {
		em.Emit(app)
	}
}

// WaitFor blocks until an application with id is registered.
func (r *Registry) WaitFor(ctx context.Context, id string) (Application, error) {
	return r.waitUntil(ctx, id, []string{EventAdd}, func(Application) bool { return true })
}

// WaitForVMServiceURI blocks until the application with id is registered and
// its VM service URI is known.
func (r *Registry) WaitForVMServiceURI(ctx context.Context, id string) (Application, error) {
	return r.waitUntil(ctx, id, []string{EventAdd, ChangeEvent(FieldVMServiceURI)}, func(a Application) bool {
		return a.VMServiceURI != ""
	})
}

func (r *Registry) waitUntil(ctx context.Context, id string, events []string, cond func(Application) bool) (Application, error) {
	found := make(chan Application, 1)
	var subs emitter.Group
	for _, name := range events {
		subs = append(subs, r.On(name, func(a Application) {
			if a.ID != id || !cond(a) {
				return
			}
			select {
			case found <- a:
			default:
			}
		}))
	}
	defer subs.Cancel()

	if a, ok := r.Get(id); ok && cond(a) {
		return a, nil
	}

	select {
	case a := <-found:
		return a, nil
	case <-ctx.Done():
		return Application{}, ctx.Err()
	}
}

func (r *Registry) onRequest(req *protocol.Request) {
	if params, ok := domain.AsStart(req); ok {
		r.mu.Lock()
		r.starts[req.ID] = &entry{app: Application{
			WorkingDirectory: params.WorkingDirectory,
			Port:             params.Port,
			DebugPort:        params.DartVMServicePort,
			RequestID:        req.ID,
		}}
		r.mu.Unlock()
		return
	}

	if params, ok := domain.AsStop(req); ok {
		r.mu.Lock()
		r.stopping[req.ID] = params.ApplicationID
		r.mu.Unlock()
	}
}

func (r *Registry) onResponse(resp *protocol.Response) {
	r.mu.Lock()
	applicationID, isStop := r.stopping[resp.ID]
	delete(r.stopping, resp.ID)
	if e, ok := r.starts[resp.ID]; ok && !e.registered && resp.IsError() {
		delete(r.starts, resp.ID)
	}
	r.mu.Unlock()

	if isStop && !resp.IsError() {
		r.remove(applicationID)
	}
}

func (r *Registry) onEvent(ev *protocol.Event) {
	switch ev.Event {
	case domain.EventApplicationStarting:
		if params, ok := domain.AsApplicationStarting(ev); ok {
			r.register(params.RequestID, params.ApplicationID)
		}
	case domain.EventLoggerInfo:
		if params, ok := domain.AsLoggerInfo(ev); ok && strings.HasPrefix(params.Message, VMServiceURIPrefix) {
			r.setVMServiceURI(params.RequestID, strings.TrimPrefix(params.Message, VMServiceURIPrefix))
		}
	case domain.EventApplicationExit:
		if params, ok := domain.AsApplicationExit(ev); ok {
			r.exit(params.RequestID, params.ApplicationID)
		}
	}
}

func (r *Registry) register(requestID, applicationID string) {
	r.mu.Lock()
	e, ok := r.starts[requestID]
	if !ok || e.registered {
		r.mu.Unlock()
		return
	}
	if _, taken := r.byID[applicationID]; taken {
		r.mu.Unlock()
		r.log.Debug().Str("app", applicationID).Msg("application already registered")
		return
	}
	e.app.ID = applicationID
	e.registered = true
	r.byID[applicationID] = e
	r.order = append(r.order, applicationID)
	app := e.app
	r.mu.Unlock()

	r.log.Info().Str("app", app.ID).Int("port", app.Port).Str("dir", app.WorkingDirectory).Msg("application registered")
	r.emit(EventAdd, app)
}

func (r *Registry) setVMServiceURI(requestID, uri string) {
	r.mu.Lock()
	e, ok := r.starts[requestID]
	if !ok || e.app.VMServiceURI == uri {
		r.mu.Unlock()
		return
	}
	e.app.VMServiceURI = uri
	registered, app := e.registered, e.app
	r.mu.Unlock()

	// Before registration the URI simply rides along with "add".
	if registered {
		r.log.Debug().Str("app", app.ID).Str("uri", uri).Msg("vm service uri")
		r.emit(ChangeEvent(FieldVMServiceURI), app)
	}
}

func (r *Registry) exit(requestID, applicationID string) {
	r.mu.Lock()
	if e, ok := r.starts[requestID]; ok && !e.registered {
		delete(r.starts, requestID)
	}
	r.mu.Unlock()

	r.remove(applicationID)
}

// remove deregisters applicationID. Unknown ids are ignored.
func (r *Registry) remove(applicationID string) {
	r.mu.Lock()
	e, ok := r.byID[applicationID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, applicationID)
	delete(r.starts, e.app.RequestID)
	for i, id := range r.order {
		if id == applicationID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	app := e.app
	r.mu.Unlock()

	r.log.Info().Str("app", app.ID).Msg("application removed")
	r.emit(EventRemove, app)
}
