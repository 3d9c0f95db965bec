package corelog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(floor Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return New(zap.New(core), floor), logs
}

func TestLevelFloorSuppressesBelow(t *testing.T) {
	l, logs := newObserved(Warn)
	l.Info("should be suppressed")
	l.Warn("should appear")
	if logs.Len() != 1 {
		t.Fatalf("expected exactly one entry to pass the floor, got %d", logs.Len())
	}
	if logs.All()[0].Message != "should appear" {
		t.Fatalf("unexpected entry: %+v", logs.All()[0])
	}
}

func TestOffFloorSuppressesEverything(t *testing.T) {
	l, logs := newObserved(Off)
	l.Critical("nope")
	if logs.Len() != 0 {
		t.Fatalf("expected Off floor to suppress all entries, got %d", logs.Len())
	}
}

func TestNopDiscardsWithoutPanicking(t *testing.T) {
	l := Nop()
	l.Trace("x")
	l.Critical("y")
}

func TestParseLevelRoundTrips(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"trace", Trace}, {"DEBUG", Debug}, {"Info", Info},
		{"warning", Warn}, {"ERROR", Error}, {"critical", Critical}, {"off", Off},
	}
	for _, c := range cases {
		got, ok := ParseLevel(c.in)
		if !ok || got != c.want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v, true", c.in, got, ok, c.want)
		}
	}
	if _, ok := ParseLevel("nonsense"); ok {
		t.Fatalf("expected ParseLevel to reject an unknown level name")
	}
}

func TestWithAttachesFields(t *testing.T) {
	l, logs := newObserved(Info)
	child := l.With(zap.String("subsystem", "render"))
	child.Info("tick")
	if logs.Len() != 1 {
		t.Fatalf("expected one entry, got %d", logs.Len())
	}
	ctxMap := logs.All()[0].ContextMap()
	if ctxMap["subsystem"] != "render" {
		t.Fatalf("expected subsystem field to propagate, got %+v", ctxMap)
	}
}

func TestStringNamesEveryLevel(t *testing.T) {
	levels := []Level{Trace, Debug, Info, Warn, Error, Critical, Off}
	names := []string{"Trace", "Debug", "Info", "Warn", "Error", "Critical", "Off"}
	for i, lvl := range levels {
		if lvl.String() != names[i] {
			t.Fatalf("Level(%d).String() = %q, want %q", lvl, lvl.String(), names[i])
		}
	}
}
