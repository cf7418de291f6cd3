package notify

import "sync"

// Fake records posts and cancels.
type Fake struct {
	mu      sync.Mutex
	posts   []Notification
	active  map[int]Notification
	cancels int
	failErr error
}

func NewFake() *Fake {
	return &Fake{active: make(map[int]Notification)}
}

// FailPosts makes every following Post return err. Pass nil to clear.
func (f *Fake) FailPosts(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

func (f *Fake) Post(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.posts = append(f.posts, n)
	f.active[n.ID] = n
	return nil
}

func (f *Fake) CancelAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.active = make(map[int]Notification)
	return nil
}

func (f *Fake) Close() error { return nil }

// Posts returns every notification posted so far, in order.
func (f *Fake) Posts() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.posts...)
}

// Active returns the notifications currently shown, keyed by ID.
func (f *Fake) Active() map[int]Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]Notification, len(f.active))
	for k, v := range f.active {
		out[k] = v
	}
	return out
}

func (f *Fake) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}
