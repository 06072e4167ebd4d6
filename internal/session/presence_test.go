package session

import (
	"testing"
	"time"

	"github.com/connectra/internal/model"
)

const testIdleWindow = 40 * time.Millisecond

func newTestPresence() (*Presence, *fakeEmitter) {
	emitter := &fakeEmitter{}
	p := newPresence("me", emitter)
	p.idleWindow = testIdleWindow
	p.resetTyping("global")
	return p, emitter
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTypingBurstEmitsOnePair(t *testing.T) {
	p, emitter := newTestPresence()

	for i := 0; i < 10; i++ {
		p.InputChanged()
	}

	if got := emitter.typingCount(); got != 1 {
		t.Fatalf("typing emitted %d times during burst, want 1", got)
	}
	waitFor(t, func() bool { return emitter.stopCount() == 1 }, "trailing stop_typing")
	if got := emitter.typingCount(); got != 1 {
		t.Fatalf("typing emitted %d times total, want 1", got)
	}
}

func TestResumeBeforeIdleSuppressesStop(t *testing.T) {
	p, emitter := newTestPresence()

	p.InputChanged()
	time.Sleep(testIdleWindow / 2)
	p.InputChanged()
	// The first timer's window has now fully elapsed; only the re-armed
	// timer may fire.
	time.Sleep(testIdleWindow * 3 / 4)
	if got := emitter.stopCount(); got != 0 {
		t.Fatalf("stop_typing fired %d times before the re-armed window elapsed", got)
	}
	waitFor(t, func() bool { return emitter.stopCount() == 1 }, "single trailing stop_typing")
	if got := emitter.typingCount(); got != 1 {
		t.Fatalf("typing emitted %d times, want 1", got)
	}
}

func TestFlushTypingStopsImmediately(t *testing.T) {
	p, emitter := newTestPresence()

	p.InputChanged()
	p.flushTyping()
	if got := emitter.stopCount(); got != 1 {
		t.Fatalf("stop_typing after flush = %d, want 1", got)
	}

	// The pending idle timer must not produce a second stop.
	time.Sleep(testIdleWindow * 2)
	if got := emitter.stopCount(); got != 1 {
		t.Fatalf("stop_typing after idle = %d, want 1", got)
	}
}

func TestFlushWithoutComposingIsNoop(t *testing.T) {
	p, emitter := newTestPresence()
	p.flushTyping()
	if got := emitter.stopCount(); got != 0 {
		t.Fatalf("stop_typing = %d, want 0", got)
	}
}

func TestInputChangedWithoutActiveChat(t *testing.T) {
	emitter := &fakeEmitter{}
	p := newPresence("me", emitter)
	p.idleWindow = testIdleWindow

	p.InputChanged()
	time.Sleep(testIdleWindow * 2)
	if emitter.typingCount() != 0 || emitter.stopCount() != 0 {
		t.Fatal("typing events emitted with no active chat")
	}
}

func TestSelfNeverInTypingSet(t *testing.T) {
	p, _ := newTestPresence()
	if p.remoteTyping("me", "global") {
		t.Fatal("self echo accepted into typing set")
	}
	if len(p.TypingUsers("global")) != 0 {
		t.Fatalf("typing set = %v, want empty", p.TypingUsers("global"))
	}
}

func TestRemoteTypingLifecycle(t *testing.T) {
	p, _ := newTestPresence()

	if !p.remoteTyping("alice", "global") {
		t.Fatal("typing event for active chat dropped")
	}
	if !p.TypingVisible("global") {
		t.Fatal("indicator not visible with one typer")
	}
	if p.TypingVisible("other") {
		t.Fatal("indicator visible for inactive chat")
	}

	if !p.remoteStopTyping("alice", "global") {
		t.Fatal("stop event for known typer dropped")
	}
	if p.TypingVisible("global") {
		t.Fatal("indicator still visible after stop")
	}
	// A stop for someone not in the set changes nothing.
	if p.remoteStopTyping("alice", "global") {
		t.Fatal("duplicate stop reported a change")
	}
}

func TestTypingEntriesExpire(t *testing.T) {
	p, _ := newTestPresence()
	base := time.Now()
	p.now = func() time.Time { return base }

	p.remoteTyping("alice", "global")
	p.remoteTyping("bob", "global")

	// alice's stop_typing is lost; time passes past the expiry.
	p.now = func() time.Time { return base.Add(typingExpiry + time.Second) }
	p.remoteTyping("bob", "global")

	users := p.TypingUsers("global")
	if len(users) != 1 || users[0] != "bob" {
		t.Fatalf("typing set = %v, want [bob]", users)
	}
}

func TestResetTypingClearsSet(t *testing.T) {
	p, emitter := newTestPresence()
	p.remoteTyping("alice", "global")
	p.InputChanged()

	p.resetTyping("dm_alice_me")
	if p.TypingVisible("dm_alice_me") {
		t.Fatal("typing set survived a chat switch")
	}
	// The pending idle timer from the old chat must not fire a stop.
	time.Sleep(testIdleWindow * 2)
	if got := emitter.stopCount(); got != 0 {
		t.Fatalf("stop_typing = %d after reset, want 0", got)
	}
}

func TestOnlineFlagMutatedInPlace(t *testing.T) {
	p, _ := newTestPresence()
	p.setRoster([]model.User{{Username: "alice"}, {Username: "bob", Online: true}})

	if !p.setOnline("alice", true) {
		t.Fatal("online transition not reported")
	}
	if p.setOnline("alice", true) {
		t.Fatal("no-change transition reported")
	}
	if p.setOnline("ghost", true) {
		t.Fatal("unknown user grew the roster")
	}

	roster := p.Roster()
	if len(roster) != 2 {
		t.Fatalf("roster size = %d, want 2", len(roster))
	}
	if roster[0].Username != "alice" || !roster[0].Online {
		t.Fatalf("roster[0] = %+v, want alice online", roster[0])
	}
}
