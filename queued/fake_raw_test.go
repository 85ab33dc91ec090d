package queued

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-mcpi/mcpi"
)

// fakeRaw is a scripted RawConnection. sendFunc, when set, answers each
// command; otherwise queries are echoed back and mutations return "".
type fakeRaw struct {
	mu       sync.Mutex
	sent     []string
	sentOpts []mcpi.ConnectOptions
	opts     mcpi.ConnectOptions
	sendFunc func(ctx context.Context, cmd mcpi.Command) (string, error)

	received   chan string
	closeCount atomic.Int32
	closeErr   error
}

func newFakeRaw(sendFunc func(ctx context.Context, cmd mcpi.Command) (string, error)) *fakeRaw {
	return &fakeRaw{
		opts:     mcpi.DefaultConnectOptions(),
		sendFunc: sendFunc,
		received: make(chan string, 1024),
	}
}

func (f *fakeRaw) Send(ctx context.Context, cmd mcpi.Command) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, cmd.String())
	f.sentOpts = append(f.sentOpts, f.opts)
	f.mu.Unlock()

	select {
	case f.received <- cmd.String():
	default:
	}

	if f.sendFunc != nil {
		return f.sendFunc(ctx, cmd)
	}

	if cmd.HasResponse() {
		return cmd.String(), nil
	}

	return "", nil
}

func (f *fakeRaw) SetOptions(opts mcpi.ConnectOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opts = opts
}

func (f *fakeRaw) Close() error {
	f.closeCount.Add(1)
	return f.closeErr
}

func (f *fakeRaw) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.sent))
	copy(out, f.sent)

	return out
}

func (f *fakeRaw) SentOptions() []mcpi.ConnectOptions {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]mcpi.ConnectOptions, len(f.sentOpts))
	copy(out, f.sentOpts)

	return out
}
