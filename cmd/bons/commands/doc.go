// Package commands defines the bons CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the issuer identity
//   - fingerprint  Print the issuer fingerprint
//   - issue        Issue a voucher and publish its witness record
//   - list         List vouchers on this device
//   - show         Show one voucher and its audit trail
//   - give         Offer a voucher and wait for the acknowledgement
//   - take         Scan an offer, accept it and answer with an acknowledgement
//   - resume       Show the pending offer again after a restart
//   - cancel       Abandon an in-flight transfer
//   - redeem       Burn a voucher that came back to its issuer
//   - sweep        Revoke vouchers whose validity has ended
//   - demo         Run a complete transfer between two in-memory devices
//
// # Implementation
//
// The root command loads config.toml, applies flag overrides and builds the
// dependency graph (store, ledger, public log client, services) before any
// subcommand runs. give and take exchange payloads as base64 lines on
// stdout and stdin, standing in for an optical code or a tap.
package commands
