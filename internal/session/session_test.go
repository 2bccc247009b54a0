package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"media-viewer-engine/internal/fetch"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/scheduler"
	"media-viewer-engine/internal/variant"
	"media-viewer-engine/internal/viewport"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// library is an in-memory fetch collaborator. Compressed renditions are
// 800x450, originals 1600x900.
type library struct {
	compressed []byte
	original   []byte

	mu    sync.Mutex
	order []string
	calls map[media.SourceKey]int
	fail  map[string]error
	gates map[string]chan struct{}
}

func newLibrary(t *testing.T) *library {
	return &library{
		compressed: pngOf(t, 800, 450),
		original:   pngOf(t, 1600, 900),
		calls:      make(map[media.SourceKey]int),
		fail:       make(map[string]error),
		gates:      make(map[string]chan struct{}),
	}
}

func (l *library) hold(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[id] = ch
	return ch
}

func (l *library) Fetch(ctx context.Context, ref media.Reference) (*fetch.Payload, error) {
	l.mu.Lock()
	l.order = append(l.order, string(ref.Key()))
	l.calls[ref.Key()]++
	gate, failErr := l.gates[ref.ID], l.fail[ref.ID]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failErr != nil {
		return nil, failErr
	}
	data := l.compressed
	if ref.EffectiveQuality() == media.QualityOriginal {
		data = l.original
	}
	return &fetch.Payload{
		Data:        data,
		ContentType: "image/png",
		Meta:        map[string]string{media.SizeHintKey: "originalSize=4096"},
	}, nil
}

func (l *library) Order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.order)
}

func (l *library) Calls(key media.SourceKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[key]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Scheduler = scheduler.Config{Limit: 4, FetchTimeout: 5 * time.Second}
	cfg.ThumbnailInterval = 5 * time.Millisecond
	cfg.ExifDelay = time.Millisecond
	return cfg
}

func newTestSession(t *testing.T, f fetch.Fetcher, cfg Config) *Session {
	t.Helper()
	s := New(f, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func ids(names ...string) []media.Reference {
	refs := make([]media.Reference, len(names))
	for i, n := range names {
		refs[i] = media.ByID(n)
	}
	return refs
}

func TestOpenLoadsEverySlot(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())

	refs := append(ids("a", "b", "a"), media.Reference{}, media.ByID("c"))
	if err := s.Open(refs, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "loads", func() bool { return s.Progress().Done() })

	p := s.Progress()
	if p.Total != 5 || p.Loaded != 4 || p.Invalid != 1 {
		t.Errorf("progress = %+v", p)
	}
	if s.State() != StateActive {
		t.Errorf("state = %s, want active", s.State())
	}

	slots := s.Slots()
	if slots[0].ViewToken == "" || slots[0].ViewToken != slots[2].ViewToken {
		t.Errorf("duplicate slots should share a handle: %q vs %q", slots[0].ViewToken, slots[2].ViewToken)
	}
	if n := lib.Calls(media.ByID("a").Key()); n != 1 {
		t.Errorf("a fetched %d times, want 1", n)
	}
	if slots[3].Load != LoadInvalid || slots[3].Error == "" {
		t.Errorf("invalid slot = %+v", slots[3])
	}
	if slots[1].Size == nil || slots[1].Size.OriginalSizeBytes != 4096 {
		t.Errorf("size metadata = %+v", slots[1].Size)
	}
	if slots[1].Variant != media.QualityCompressed {
		t.Errorf("variant = %q", slots[1].Variant)
	}
	if got := s.CurrentViewToken(); got != slots[0].ViewToken {
		t.Errorf("CurrentViewToken = %q, want %q", got, slots[0].ViewToken)
	}
	h, ok := s.Lookup(slots[4].ViewToken)
	if !ok || h.ContentType() != "image/png" {
		t.Errorf("Lookup(%q) = %v, %v", slots[4].ViewToken, h, ok)
	}
}

func TestSerializedLoadsWithNextBeforeFirstResolves(t *testing.T) {
	lib := newLibrary(t)
	gateA := lib.hold("A")
	cfg := testConfig()
	cfg.Scheduler.Limit = 1
	s := newTestSession(t, lib, cfg)

	if err := s.Open(ids("A", "B", "C"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if moved, err := s.Next(); !moved || err != nil {
		t.Fatalf("Next = %v, %v", moved, err)
	}
	close(gateA)
	waitFor(t, "loads", func() bool { return s.Progress().Loaded == 3 })

	// B is current once it loads, so its original is prefetched after the
	// slot loads have been dispatched.
	orig := media.ByID("B").WithQuality(media.QualityOriginal)
	waitFor(t, "prefetch of B original", func() bool { return lib.Calls(orig.Key()) == 1 })

	want := []string{"id:A@compressed", "id:B@compressed", "id:C@compressed"}
	order := lib.Order()
	if len(order) < len(want) || !slices.Equal(order[:len(want)], want) {
		t.Fatalf("dispatch order = %v, want %v first", order, want)
	}
	if !slices.Equal(order[len(want):], []string{string(orig.Key())}) {
		t.Errorf("dispatches after slot loads = %v, want only %s", order[len(want):], orig.Key())
	}
	if n := lib.Calls(media.ByID("A").Key()); n != 1 {
		t.Errorf("A fetched %d times", n)
	}
}

func TestNavigationBoundsAndReset(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	if _, err := s.SetContainer(viewport.Size{Width: 400, Height: 300}); err != nil {
		t.Fatalf("SetContainer: %v", err)
	}
	if err := s.Open(ids("a", "b", "c"), 1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "loads", func() bool { return s.Progress().Loaded == 3 })

	if _, err := s.Apply(Input{Kind: InputClick, X: 200, Y: 150}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if z := s.ViewportState().Zoom; z != 2 {
		t.Fatalf("zoom after click = %v, want 2", z)
	}

	if moved, _ := s.Next(); !moved {
		t.Fatal("Next from slot 1 did not move")
	}
	if st := s.ViewportState(); st != viewport.Identity() {
		t.Errorf("viewport after navigation = %+v, want reset", st)
	}
	if moved, _ := s.Next(); moved || s.Current() != 2 {
		t.Errorf("Next at last slot moved to %d", s.Current())
	}
	if err := s.GoTo(0); err != nil || s.Current() != 0 {
		t.Fatalf("GoTo(0) = %v, current %d", err, s.Current())
	}
	if moved, _ := s.Previous(); moved {
		t.Error("Previous at first slot moved")
	}
	if err := s.GoTo(7); !errors.Is(err, ErrNoSlot) {
		t.Errorf("GoTo(7) error = %v, want ErrNoSlot", err)
	}
}

func TestAutoplayWrapsAndKeepsViewport(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	s.SetContainer(viewport.Size{Width: 400, Height: 300})
	if err := s.Open(ids("a", "b", "c"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "loads", func() bool { return s.Progress().Loaded == 3 })
	s.Apply(Input{Kind: InputClick, X: 200, Y: 150})
	zoomed := s.ViewportState()

	if err := s.StartAutoplay(time.Hour); err != nil {
		t.Fatalf("StartAutoplay: %v", err)
	}
	if !s.Autoplaying() {
		t.Fatal("Autoplaying = false")
	}
	s.mu.Lock()
	gen, a := s.gen, s.autoplay
	s.mu.Unlock()

	var visited []int
	for i := 0; i < 4; i++ {
		s.advanceAutoplay(gen, a)
		visited = append(visited, s.Current())
	}
	if !slices.Equal(visited, []int{1, 2, 0, 1}) {
		t.Errorf("autoplay visited %v, want [1 2 0 1]", visited)
	}
	if st := s.ViewportState(); st != zoomed {
		t.Errorf("viewport across autoplay = %+v, want %+v", st, zoomed)
	}

	s.StopAutoplay()
	if s.Autoplaying() {
		t.Error("still autoplaying after StopAutoplay")
	}
	s.advanceAutoplay(gen, a)
	if s.Current() != 1 {
		t.Errorf("stale autoplay tick moved to %d", s.Current())
	}
}

func TestAutoplayTimerAdvances(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	if err := s.Open(ids("a", "b"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.StartAutoplay(5 * time.Millisecond); err != nil {
		t.Fatalf("StartAutoplay: %v", err)
	}
	waitFor(t, "autoplay tick", func() bool { return s.Current() == 1 })
	s.StopAutoplay()
}

func TestToggleVariantRoundTrip(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	s.SetContainer(viewport.Size{Width: 400, Height: 300})
	if err := s.Open(ids("p"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "load", func() bool { return s.Progress().Loaded == 1 })

	s.Apply(Input{Kind: InputClick, X: 300, Y: 200})
	before := s.ViewportState()
	startKey := s.Slots()[0].Key
	if before.Zoom != 2 || before.TranslateX != -100 || before.TranslateY != -50 {
		t.Fatalf("viewport before toggle = %+v", before)
	}

	ctx := context.Background()
	if err := s.ToggleVariant(ctx, 0); err != nil {
		t.Fatalf("ToggleVariant: %v", err)
	}
	mid := s.Slots()[0]
	if mid.Variant != media.QualityOriginal || mid.Key == startKey {
		t.Errorf("after one toggle slot = %+v", mid)
	}
	if st := s.ViewportState(); st != before {
		t.Errorf("viewport after one toggle = %+v, want %+v", st, before)
	}

	if err := s.ToggleVariant(ctx, 0); err != nil {
		t.Fatalf("second ToggleVariant: %v", err)
	}
	if got := s.Slots()[0].Key; got != startKey {
		t.Errorf("key after round trip = %s, want %s", got, startKey)
	}
	if st := s.ViewportState(); st != before {
		t.Errorf("viewport after round trip = %+v, want %+v", st, before)
	}
	if n := lib.Calls(media.ByID("p").WithQuality(media.QualityOriginal).Key()); n != 1 {
		t.Errorf("original fetched %d times, want 1", n)
	}
}

func TestToggleVariantRejectsBlobs(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	blob := media.Materialized("local.png", &media.Blob{Data: lib.compressed, ContentType: "image/png"})
	if err := s.Open([]media.Reference{blob}, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "load", func() bool { return s.Progress().Loaded == 1 })

	if err := s.ToggleVariant(context.Background(), 0); !errors.Is(err, variant.ErrNoVariant) {
		t.Errorf("ToggleVariant(blob) error = %v, want ErrNoVariant", err)
	}
	if err := s.ToggleVariant(context.Background(), 3); !errors.Is(err, ErrNoSlot) {
		t.Errorf("ToggleVariant(3) error = %v, want ErrNoSlot", err)
	}
}

func TestEmptySessionAfterInitRetries(t *testing.T) {
	lib := newLibrary(t)
	lib.fail["x"] = errors.New("unreachable")
	lib.fail["y"] = errors.New("unreachable")
	cfg := testConfig()
	cfg.InitRetries = 2
	s := newTestSession(t, lib, cfg)

	if err := s.Open(ids("x", "y"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "empty state", func() bool { return s.State() == StateEmpty })

	for _, id := range []string{"x", "y"} {
		if n := lib.Calls(media.ByID(id).Key()); n != 3 {
			t.Errorf("%s fetched %d times, want 1 + 2 retries", id, n)
		}
	}
	if p := s.Progress(); p.Failed != 2 {
		t.Errorf("progress = %+v", p)
	}

	if err := s.AddReferences(ids("z")); err != nil {
		t.Fatalf("AddReferences: %v", err)
	}
	waitFor(t, "recovery", func() bool { return s.State() == StateActive && s.Progress().Loaded == 1 })
}

func TestNavigatingToPendingSlotKeepsRetryBudget(t *testing.T) {
	lib := newLibrary(t)
	lib.fail["x"] = errors.New("unreachable")
	lib.fail["y"] = errors.New("unreachable")
	gate := lib.hold("y")
	cfg := testConfig()
	cfg.InitRetries = 2
	s := newTestSession(t, lib, cfg)

	if err := s.Open(ids("x", "y"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ok, err := s.Next(); !ok || err != nil {
		t.Fatalf("Next = (%v, %v)", ok, err)
	}
	close(gate)
	waitFor(t, "empty state", func() bool { return s.State() == StateEmpty })

	if n := lib.Calls(media.ByID("y").Key()); n != 3 {
		t.Errorf("y fetched %d times, want 1 + 2 retries", n)
	}
}

func TestNoRetryOnceAnySlotResolved(t *testing.T) {
	lib := newLibrary(t)
	lib.fail["bad"] = errors.New("gone")
	gate := lib.hold("bad")
	s := newTestSession(t, lib, testConfig())

	if err := s.Open(ids("good", "bad"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "good", func() bool { return s.Progress().Loaded == 1 })
	close(gate)
	waitFor(t, "loads", func() bool { return s.Progress().Done() })
	if n := lib.Calls(media.ByID("bad").Key()); n != 1 {
		t.Errorf("bad fetched %d times, want 1", n)
	}
	if sl, _ := s.Slot(1); sl.Load != LoadFailed || sl.Error == "" {
		t.Errorf("slot 1 = %+v", sl)
	}
}

func TestAddReferencesKeepsExistingSlots(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	if err := s.Open(ids("a", "b"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "loads", func() bool { return s.Progress().Loaded == 2 })
	token := s.Slots()[1].ViewToken

	if err := s.AddReferences(ids("c", "d")); err != nil {
		t.Fatalf("AddReferences: %v", err)
	}
	waitFor(t, "added loads", func() bool { return s.Progress().Loaded == 4 })
	if got := s.Slots()[1].ViewToken; got != token {
		t.Errorf("existing slot token changed: %q -> %q", token, got)
	}
	if s.Len() != 4 {
		t.Errorf("Len = %d, want 4", s.Len())
	}
}

func TestThumbnailsEventuallyComplete(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	if err := s.Open(ids("a", "b", "c"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "thumbnails", func() bool {
		p := s.Progress()
		return p.Thumbnails+p.ThumbnailsFailed == 3
	})
	for _, sl := range s.Slots() {
		if sl.Thumbnail != "done" || sl.ThumbnailToken == "" {
			t.Errorf("slot %d thumbnail = %s %q", sl.Index, sl.Thumbnail, sl.ThumbnailToken)
		}
	}
}

func TestStateChangedObservers(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())

	var mu sync.Mutex
	seen := map[int]int{}
	remove := s.OnStateChanged(func(slot int) {
		mu.Lock()
		seen[slot]++
		mu.Unlock()
	})
	if err := s.Open(ids("a", "b"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "notifications", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[0] > 0 && seen[1] > 0
	})
	remove()

	var calls atomic.Int32
	removeOther := s.OnStateChanged(func(int) { calls.Add(1) })
	s.notify(9)
	removeOther()
	s.notify(9)
	if n := calls.Load(); n != 1 {
		t.Errorf("observer called %d times, want 1", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen[9] != 0 {
		t.Error("removed observer still notified")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	lib := newLibrary(t)
	s := New(lib, testConfig())
	if err := s.Open(ids("a", "b"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "thumbnails", func() bool { return s.Progress().Thumbnails == 2 })

	var handles []string
	for _, sl := range s.Slots() {
		handles = append(handles, sl.ViewToken, sl.ThumbnailToken)
	}
	h, _ := s.Lookup(handles[0])

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !h.Released() {
		t.Error("handle not released by Close")
	}
	for _, tok := range handles {
		if _, ok := s.Lookup(tok); ok {
			t.Errorf("token %q still resolvable", tok)
		}
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s", s.State())
	}
	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
	if err := s.Open(ids("a"), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close = %v, want ErrClosed", err)
	}
	if _, err := s.Next(); !errors.Is(err, ErrClosed) {
		t.Errorf("Next after Close = %v, want ErrClosed", err)
	}
}

func TestReopenDiscardsPreviousSession(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	if err := s.Open(ids("a", "b"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "loads", func() bool { return s.Progress().Loaded == 2 })
	old, _ := s.Lookup(s.CurrentViewToken())

	if err := s.Open(ids("c"), 5); err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	if !old.Released() {
		t.Error("previous session's handle survived re-open")
	}
	if s.Len() != 1 || s.Current() != 0 {
		t.Errorf("Len=%d Current=%d after re-open", s.Len(), s.Current())
	}
	waitFor(t, "load", func() bool { return s.Progress().Loaded == 1 })
}
