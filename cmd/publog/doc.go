// Package main runs the public log server that stores witness records and
// the audit trail for bons vouchers.
//
// HTTP API
//
//	PUT /witness/{voucher-id}
//	    Publish a CBOR witness record. The issuer signature is checked.
//	    Republishing the same bytes succeeds; different bytes get 409.
//
//	GET /witness/{voucher-id}
//	    Return the CBOR witness record, or 404.
//
//	POST /events
//	    Append a JSON audit event. Events are deduplicated by id.
//
//	GET /events/{voucher-id}
//	    Return the audit trail for a voucher as a JSON array.
//
//	GET /health, GET /metrics
//	    Liveness and Prometheus metrics.
//
// Records and events are kept in a leveldb directory (--data) and reloaded
// on start; --memory runs a throwaway log for development. The server only
// ever sees witness shares, which alone reveal nothing about a voucher key.
package main
