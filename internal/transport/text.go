package transport

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"strings"
	"sync"

	"bons/internal/errors"
)

// maxLine bounds one framed payload; offers encode to 320 characters.
const maxLine = 4096

type line struct {
	text string
	err  error
}

// Text frames payloads as standard base64, one per line.
type Text struct {
	w  io.Writer
	mu sync.Mutex

	r     io.Reader
	start sync.Once
	lines chan line
}

// NewText returns a channel reading from r and writing to w.
func NewText(r io.Reader, w io.Writer) *Text {
	return &Text{r: r, w: w, lines: make(chan line, 1)}
}

// Encode returns the framed form of payload without its newline.
func Encode(payload []byte) string { return base64.StdEncoding.EncodeToString(payload) }

// Decode parses one framed line.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "payload is not base64")
	}
	return b, nil
}

func (t *Text) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return ctxError(ctx, "send")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, Encode(payload)+"\n"); err != nil {
		return errors.Wrapf(errors.ErrTransportUnavailable, "write: %v", err)
	}
	return nil
}

// Receive returns the next non-blank line decoded. A line left unread when
// ctx ends is delivered to the next call.
func (t *Text) Receive(ctx context.Context) ([]byte, error) {
	t.start.Do(func() { go t.scan() })
	select {
	case l, ok := <-t.lines:
		if !ok {
			return nil, errors.ErrTransportUnavailable.New("input closed")
		}
		if l.err != nil {
			return nil, l.err
		}
		return Decode(l.text)
	case <-ctx.Done():
		return nil, ctxError(ctx, "receive")
	}
}

func (t *Text) scan() {
	defer close(t.lines)
	sc := bufio.NewScanner(t.r)
	sc.Buffer(make([]byte, 0, 512), maxLine)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		t.lines <- line{text: s}
	}
	if err := sc.Err(); err != nil {
		t.lines <- line{err: errors.Wrapf(errors.ErrTransportUnavailable, "read: %v", err)}
	}
}

var _ Channel = (*Text)(nil)
