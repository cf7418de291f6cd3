package notify

import (
	"errors"
	"testing"
)

func TestFakeTracksActive(t *testing.T) {
	f := NewFake()
	f.Post(Notification{ID: 1, Message: "a", Persistent: true})
	f.Post(Notification{ID: 1, Message: "b", Persistent: true})
	if len(f.Posts()) != 2 {
		t.Errorf("posts = %d, want 2", len(f.Posts()))
	}
	active := f.Active()
	if len(active) != 1 || active[1].Message != "b" {
		t.Errorf("active = %v, want one replaced notification", active)
	}
	f.CancelAll()
	if len(f.Active()) != 0 || f.Cancels() != 1 {
		t.Error("CancelAll did not clear active notifications")
	}
}

func TestFakeFailPosts(t *testing.T) {
	f := NewFake()
	boom := errors.New("denied")
	f.FailPosts(boom)
	if err := f.Post(Notification{ID: 1}); !errors.Is(err, boom) {
		t.Fatalf("Post err = %v", err)
	}
	if len(f.Posts()) != 0 {
		t.Error("failed post was recorded")
	}
}
