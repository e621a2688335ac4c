package visibility

import (
	"math"
	"math/rand"
	"testing"
)

func TestGateListensIffLastEntryVisible(t *testing.T) {
	target := NewTarget()
	calls := 0
	g := NewGate(target, func() { calls++ })

	if g.State() != Idle {
		t.Fatalf("Expected initial state idle, got %s", g.State())
	}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		e := Entry{Intersecting: r.Intn(2) == 0, Ratio: []float64{0, 0.5, 1}[r.Intn(3)]}
		g.Update(e)

		visible := e.Intersecting && e.Ratio >= DefaultThreshold-ratioEpsilon
		if visible != (target.Len() == 1) {
			t.Fatalf("step %d: entry %+v visible=%v but %d listeners attached", i, e, visible, target.Len())
		}
		if target.Len() > 1 {
			t.Fatalf("step %d: listener attached %d times", i, target.Len())
		}
	}
}

func TestGateDispatchOnlyWhileListening(t *testing.T) {
	target := NewTarget()
	calls := 0
	g := NewGate(target, func() { calls++ })

	target.Dispatch()
	g.Update(Entry{Intersecting: true, Ratio: 1})
	target.Dispatch()
	target.Dispatch()
	g.Update(Entry{Intersecting: false})
	target.Dispatch()

	if calls != 2 {
		t.Errorf("Expected 2 listener calls, got %d", calls)
	}
	if g.Attaches() != 1 {
		t.Errorf("Expected 1 attach, got %d", g.Attaches())
	}
}

func TestGateThreshold(t *testing.T) {
	target := NewTarget()
	g := NewGate(target, func() {}, WithThreshold(0.25))

	g.Update(Entry{Intersecting: true, Ratio: 0.2})
	if g.State() != Idle {
		t.Error("Expected idle below threshold")
	}
	g.Update(Entry{Intersecting: true, Ratio: 0.25})
	if g.State() != Listening {
		t.Error("Expected listening at threshold")
	}
}

func TestGateAcceptsRoundedFullRatio(t *testing.T) {
	target := NewTarget()
	g := NewGate(target, func() {})

	g.Update(Entry{Intersecting: true, Ratio: 0.9950248756218906})
	if g.State() != Listening {
		t.Fatal("Expected a rounded full ratio to attach")
	}
	g.Update(Entry{Intersecting: true, Ratio: 0.95})
	if g.State() != Idle {
		t.Error("Expected a partly hidden surface to detach")
	}
}

type fakeObserver struct {
	fn           func(Entry)
	disconnected int
}

func (o *fakeObserver) Observe(fn func(Entry)) { o.fn = fn }
func (o *fakeObserver) Disconnect()            { o.disconnected++ }

func TestGateCloseFromAnyState(t *testing.T) {
	for _, st := range []State{Idle, Listening} {
		t.Run(st.String(), func(t *testing.T) {
			target := NewTarget()
			obs := &fakeObserver{}
			g := NewGate(target, func() {})
			g.Watch(obs)

			if st == Listening {
				obs.fn(Entry{Intersecting: true, Ratio: 1})
			}

			g.Close()
			g.Close()

			if target.Len() != 0 {
				t.Errorf("Expected no listeners after Close, got %d", target.Len())
			}
			if obs.disconnected != 1 {
				t.Errorf("Expected one Disconnect, got %d", obs.disconnected)
			}

			obs.fn(Entry{Intersecting: true, Ratio: 1})
			if target.Len() != 0 {
				t.Error("late entry re-attached listener after Close")
			}
		})
	}
}

func TestWatchAfterCloseDisconnects(t *testing.T) {
	g := NewGate(NewTarget(), func() {})
	g.Close()
	obs := &fakeObserver{}
	g.Watch(obs)
	if obs.disconnected != 1 || obs.fn != nil {
		t.Error("Expected observer disconnected without observing")
	}
}

func TestIntersection(t *testing.T) {
	vp := Rect{W: 1000, H: 800}

	tests := []struct {
		name    string
		element Rect
		margin  float64
		want    Entry
	}{
		{"fully inside", Rect{Y: 100, W: 400, H: 300}, 0, Entry{true, 1}},
		{"half below", Rect{Y: 650, W: 400, H: 300}, 0, Entry{true, 0.5}},
		{"below", Rect{Y: 900, W: 400, H: 300}, 0, Entry{}},
		{"below within margin", Rect{Y: 900, W: 400, H: 300}, 800, Entry{true, 1}},
		{"empty element", Rect{Y: 100}, 0, Entry{}},
	}

	for _, tt := range tests {
		got := Intersection(tt.element, vp, tt.margin)
		if got.Intersecting != tt.want.Intersecting || math.Abs(got.Ratio-tt.want.Ratio) > 1e-9 {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestRectObserverDeliversOnFlip(t *testing.T) {
	el := Rect{Y: 1200, W: 400, H: 300}
	vp := Rect{W: 1000, H: 800}
	obs := NewRectObserver(func() Rect { return el }, func() Rect { return vp }, 0, 1)

	var got []Entry
	obs.Observe(func(e Entry) { got = append(got, e) })
	if len(got) != 1 || got[0].Intersecting {
		t.Fatalf("Expected initial invisible entry, got %+v", got)
	}

	el.Y = 1100
	obs.Check()
	if len(got) != 1 {
		t.Errorf("Expected no delivery without flip, got %d", len(got))
	}

	el.Y = 200
	obs.Check()
	if len(got) != 2 || !got[1].Intersecting {
		t.Fatalf("Expected visible entry, got %+v", got)
	}

	obs.Disconnect()
	el.Y = 5000
	obs.Check()
	if len(got) != 2 {
		t.Error("delivered after Disconnect")
	}
}

func TestRectObserverViewportMargin(t *testing.T) {
	el := Rect{Y: 1000, W: 400, H: 300}
	vp := Rect{W: 1000, H: 800}
	obs := NewRectObserver(func() Rect { return el }, func() Rect { return vp }, -1, 1)

	var last Entry
	obs.Observe(func(e Entry) { last = e })
	if !last.Intersecting || last.Ratio != 1 {
		t.Errorf("Expected element inside one-viewport margin, got %+v", last)
	}
}
