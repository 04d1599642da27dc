package publog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"bons/internal/domain"
	"bons/internal/errors"
)

// maxBody caps any response body read from the log server.
const maxBody = 1 << 20

// HTTP talks to a public log server over HTTP.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the server at base. A nil client means
// http.DefaultClient.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: client}
}

// Publish uploads the CBOR encoding of rec.
func (c *HTTP) Publish(ctx context.Context, rec domain.WitnessRecord) error {
	raw, err := MarshalRecord(rec)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/witness/"+rec.VoucherID.String(), ContentType, raw)
	return err
}

// Fetch downloads and decodes the witness record for id.
func (c *HTTP) Fetch(ctx context.Context, id domain.VoucherID) (domain.WitnessRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/witness/"+id.String(), "", nil)
	if err != nil {
		return domain.WitnessRecord{}, err
	}
	rec, err := UnmarshalRecord(body)
	if err != nil {
		return domain.WitnessRecord{}, err
	}
	if rec.VoucherID != id {
		return domain.WitnessRecord{}, errors.ErrInvalidInput.New("server returned a record for another voucher")
	}
	return rec, nil
}

// Append posts ev to the audit trail.
func (c *HTTP) Append(ctx context.Context, ev domain.AuditEvent) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(ev); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	_, err := c.do(ctx, http.MethodPost, "/events", "application/json", buf.Bytes())
	return err
}

// Events returns the audit trail for id.
func (c *HTTP) Events(ctx context.Context, id domain.VoucherID) ([]domain.AuditEvent, error) {
	body, err := c.do(ctx, http.MethodGet, "/events/"+id.String(), "", nil)
	if err != nil {
		return nil, err
	}
	var evs []domain.AuditEvent
	if err := json.Unmarshal(body, &evs); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "events: "+err.Error())
	}
	return evs, nil
}

func (c *HTTP) do(ctx context.Context, method, path, contentType string, in []byte) ([]byte, error) {
	var rd io.Reader
	if in != nil {
		rd = bytes.NewReader(in)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, rd)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, transportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, transportError(ctx, method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(method, path, resp.StatusCode, resp.Status)
	}
	return body, nil
}

func transportError(ctx context.Context, method, path string, err error) error {
	switch {
	case ctx.Err() == context.Canceled:
		return errors.Wrapf(errors.ErrCancelled, "public log %s %s", method, path)
	case ctx.Err() == context.DeadlineExceeded:
		return errors.Wrapf(errors.ErrTransportTimeout, "public log %s %s", method, path)
	}
	return errors.Wrapf(errors.ErrTransportUnavailable, "public log %s %s: %v", method, path, err)
}

func statusError(method, path string, code int, status string) error {
	var root *errors.Error
	switch {
	case code == http.StatusNotFound:
		root = errors.ErrNotFound
	case code == http.StatusConflict:
		root = errors.ErrDuplicate
	case code == http.StatusBadRequest:
		root = errors.ErrInvalidInput
	case code == http.StatusForbidden:
		root = errors.ErrInvalidSignature
	default:
		root = errors.ErrTransportUnavailable
	}
	return root.Newf("public log %s %s: %s", method, path, status)
}

var _ domain.PublicLog = (*HTTP)(nil)
