// Package transporttest provides a recording Transport for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/Proton-105/storefront-bot/internal/transport"
)

type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
)

// Call is one recorded transport operation.
type Call struct {
	Kind    Kind
	Ref     transport.MessageRef
	Message transport.Message
	Image   []byte
}

// Recorder records every call and fails sends to chats registered with FailFor.
type Recorder struct {
	mu     sync.Mutex
	nextID int
	calls  []Call
	fail   map[int64]error
	images map[int64]error
}

var _ transport.Transport = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{fail: make(map[int64]error), images: make(map[int64]error)}
}

// FailFor makes every operation towards chatID return err.
func (r *Recorder) FailFor(chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[chatID] = err
}

// FailImagesFor makes image sends towards chatID return err; text still goes through.
func (r *Recorder) FailImagesFor(chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[chatID] = err
}

func (r *Recorder) SendText(ctx context.Context, chatID int64, msg transport.Message) (transport.MessageRef, error) {
	return r.record(ctx, Call{Kind: KindText, Ref: transport.MessageRef{ChatID: chatID}, Message: msg})
}

func (r *Recorder) SendImage(ctx context.Context, chatID int64, img transport.Image) (transport.MessageRef, error) {
	return r.record(ctx, Call{Kind: KindImage, Ref: transport.MessageRef{ChatID: chatID}, Message: img.Caption, Image: img.Data})
}

func (r *Recorder) EditText(ctx context.Context, ref transport.MessageRef, msg transport.Message) error {
	_, err := r.record(ctx, Call{Kind: KindEdit, Ref: ref, Message: msg})
	return err
}

func (r *Recorder) Delete(ctx context.Context, ref transport.MessageRef) error {
	_, err := r.record(ctx, Call{Kind: KindDelete, Ref: ref})
	return err
}

func (r *Recorder) record(ctx context.Context, call Call) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.fail[call.Ref.ChatID]; ok {
		return transport.MessageRef{}, err
	}
	if err, ok := r.images[call.Ref.ChatID]; ok && call.Kind == KindImage {
		return transport.MessageRef{}, err
	}

	if call.Kind == KindText || call.Kind == KindImage {
		r.nextID++
		call.Ref.MessageID = r.nextID
	}
	r.calls = append(r.calls, call)

	return call.Ref, nil
}

// Calls returns a copy of every successful call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo returns the successful calls addressed to chatID.
func (r *Recorder) CallsTo(chatID int64) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Ref.ChatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the most recent call to chatID.
func (r *Recorder) Last(chatID int64) (Call, bool) {
	calls := r.CallsTo(chatID)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}

// Texts returns the message texts and captions delivered to chatID.
func (r *Recorder) Texts(chatID int64) []string {
	var out []string
	for _, c := range r.CallsTo(chatID) {
		if c.Kind == KindDelete {
			continue
		}
		out = append(out, c.Message.Text)
	}
	return out
}

// Actions flattens the button actions of a message.
func Actions(msg transport.Message) []string {
	var out []string
	for _, row := range msg.Buttons {
		for _, b := range row {
			out = append(out, b.Action)
		}
	}
	return out
}

// Reset drops recorded calls but keeps failure rules.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
