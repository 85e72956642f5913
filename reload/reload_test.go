package reload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"ironbutton/config"
	"ironbutton/dispatch"
	"ironbutton/shortcut"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Reloading() {
	n.mu.Lock()
	n.events = append(n.events, "reloading")
	n.mu.Unlock()
}

func (n *fakeNotifier) Reloaded(string) {
	n.mu.Lock()
	n.events = append(n.events, "reloaded")
	n.mu.Unlock()
}

func (n *fakeNotifier) got() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

const before = `
binds:
  toggle-mute:
    on_down: !Run {program: /usr/bin/amixer, arguments: [set, Master, toggle]}
`

const after = `
binds:
  toggle-mute:
    description: Mute
    on_down: !Run {program: /usr/bin/pactl, arguments: [set-sink-mute, "@DEFAULT_SINK@", toggle]}
  screenshot:
    suggest: LOGO+s
`

type harness struct {
	path   string
	store  *config.Store
	gw     *shortcut.Fake
	notify *fakeNotifier
	ctl    *Controller
}

func setup(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, before)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		path:   path,
		store:  config.NewStore(cfg),
		gw:     shortcut.NewFake(),
		notify: &fakeNotifier{},
	}
	h.ctl = New(path, h.store, h.gw, h.notify)
	return h
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReloadSwapsAfterBind(t *testing.T) {
	h := setup(t)
	old := h.store.Current()
	writeFile(t, h.path, after)

	if err := h.ctl.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	cur := h.store.Current()
	if cur == old {
		t.Fatal("store still holds the previous configuration")
	}
	want, err := config.Load(h.path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cur, want) {
		t.Errorf("store = %+v, want %+v", cur, want)
	}
	if !reflect.DeepEqual(h.gw.Bound(), shortcut.Collect(want)) {
		t.Errorf("bound %+v", h.gw.Bound())
	}
	if got := h.notify.got(); !reflect.DeepEqual(got, []string{"reloading", "reloaded"}) {
		t.Errorf("notifications = %v", got)
	}
	if h.ctl.State() != Idle {
		t.Errorf("state = %v after reload", h.ctl.State())
	}
}

func TestReloadMalformedKeepsStore(t *testing.T) {
	for _, body := range []string{
		"binds: [",
		"nothing: here\n",
		"binds:\n  a:\n    on_down: !Teleport {}\n",
	} {
		h := setup(t)
		old := h.store.Current()
		writeFile(t, h.path, body)

		err := h.ctl.Reload(context.Background())
		if !errors.Is(err, config.ErrParse) || !Recoverable(err) {
			t.Errorf("Reload(%q) = %v, want recoverable parse error", body, err)
		}
		if h.store.Current() != old {
			t.Errorf("store replaced after malformed reload %q", body)
		}
		if h.gw.BindCalls() != 0 {
			t.Errorf("Bind called for malformed config %q", body)
		}
		if got := h.notify.got(); !reflect.DeepEqual(got, []string{"reloading", "reloaded"}) {
			t.Errorf("notifications = %v", got)
		}
	}
}

func TestReloadBindFailureKeepsStore(t *testing.T) {
	h := setup(t)
	old := h.store.Current()
	writeFile(t, h.path, after)
	bindErr := errors.New("portal went away")
	h.gw.FailBind(bindErr)

	err := h.ctl.Reload(context.Background())
	if !errors.Is(err, bindErr) {
		t.Fatalf("Reload() = %v, want %v", err, bindErr)
	}
	if Recoverable(err) {
		t.Error("bind failure should not be recoverable")
	}
	if h.store.Current() != old {
		t.Error("store replaced although Bind failed")
	}
}

func TestDeletedConfigKeepsDispatching(t *testing.T) {
	h := setup(t)
	if err := os.Remove(h.path); err != nil {
		t.Fatal(err)
	}

	err := h.ctl.Reload(context.Background())
	if !errors.Is(err, config.ErrRead) {
		t.Fatalf("Reload() = %v, want ErrRead", err)
	}

	var got []config.Action
	d := dispatch.New(h.store, executorFunc(func(a config.Action) { got = append(got, a) }))
	d.Handle(shortcut.Down, shortcut.Event{ID: "toggle-mute"})

	want := []config.Action{config.Run{Program: "/usr/bin/amixer", Arguments: []string{"set", "Master", "toggle"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("executed %v, want %v", got, want)
	}
}

func TestRunContinuesAfterBadConfig(t *testing.T) {
	h := setup(t)
	triggers := Triggers()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.ctl.Run(ctx, triggers) }()

	writeFile(t, h.path, "binds: [")
	Poke(triggers)
	waitNotifications(t, h.notify, 2)

	writeFile(t, h.path, after)
	Poke(triggers)
	waitNotifications(t, h.notify, 4)

	if _, ok := h.store.Lookup("screenshot"); !ok {
		t.Error("second reload was not applied")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunStopsOnBindFailure(t *testing.T) {
	h := setup(t)
	h.gw.FailBind(errors.New("no session"))
	triggers := Triggers()

	done := make(chan error, 1)
	go func() { done <- h.ctl.Run(context.Background(), triggers) }()
	Poke(triggers)

	select {
	case err := <-done:
		if err == nil || Recoverable(err) {
			t.Errorf("Run() = %v, want fatal error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

type blockingBinder struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	release chan struct{}
}

func (b *blockingBinder) Bind(context.Context, []shortcut.Shortcut) error {
	b.mu.Lock()
	b.active++
	if b.active > b.maxSeen {
		b.maxSeen = b.active
	}
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return nil
}

func TestReloadsSerialize(t *testing.T) {
	h := setup(t)
	binder := &blockingBinder{release: make(chan struct{})}
	ctl := New(h.path, h.store, binder, h.notify)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctl.Reload(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		binder.release <- struct{}{}
	}
	wg.Wait()

	if binder.maxSeen != 1 {
		t.Errorf("%d reloads overlapped", binder.maxSeen)
	}
}

func TestPokeCoalesces(t *testing.T) {
	triggers := Triggers()
	Poke(triggers)
	Poke(triggers) // should not block
	<-triggers
	select {
	case <-triggers:
		t.Error("expected a single pending trigger")
	default:
	}
}

func TestForwardSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	triggers := Triggers()
	ForwardSignals(ctx, sigs, triggers)

	sigs <- os.Interrupt
	select {
	case <-triggers:
	case <-time.After(time.Second):
		t.Fatal("signal not forwarded")
	}
}

func waitNotifications(t *testing.T, n *fakeNotifier, count int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(n.got()) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("got %d notifications, want %d", len(n.got()), count)
}

type executorFunc func(config.Action)

func (f executorFunc) Execute(a config.Action) { f(a) }
