package domain

import (
	interfaces "bons/internal/domain/interfaces"
	types "bons/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	VoucherID      = types.VoucherID
	Fingerprint    = types.Fingerprint
	Amount         = types.Amount
	Status         = types.Status
	Role           = types.Role
	Share          = types.Share
	ShareSet       = types.ShareSet
	Voucher        = types.Voucher
	Challenge      = types.Challenge
	LockState      = types.LockState
	TransferLock   = types.TransferLock
	LockedVoucher  = types.LockedVoucher
	Sealed         = types.Sealed
	Offer          = types.Offer
	Ack            = types.Ack
	AckStatus      = types.AckStatus
	WitnessRecord  = types.WitnessRecord
	EventKind      = types.EventKind
	AuditEvent     = types.AuditEvent
	Identity       = types.Identity
	Ed25519Public  = types.Ed25519Public
	Ed25519Private = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService = interfaces.IdentityService
	IdentityStore   = interfaces.IdentityStore
	Ledger          = interfaces.Ledger
	ShareCodec      = interfaces.ShareCodec
	ShareCipher     = interfaces.ShareCipher
	PublicLog       = interfaces.PublicLog
	Channel         = interfaces.Channel
)

// Constants re-exported for callers that only import domain.
const (
	StatusActive  = types.StatusActive
	StatusLocked  = types.StatusLocked
	StatusSpent   = types.StatusSpent
	StatusBurned  = types.StatusBurned
	StatusRevoked = types.StatusRevoked

	RoleDonor    = types.RoleDonor
	RoleReceiver = types.RoleReceiver

	LockHeld        = types.LockHeld
	LockOfferIssued = types.LockOfferIssued

	AckReceived = types.AckReceived

	EventIssued      = types.EventIssued
	EventTransferred = types.EventTransferred
	EventRedeemed    = types.EventRedeemed
	EventRevoked     = types.EventRevoked

	ShareSize     = types.ShareSize
	ChallengeSize = types.ChallengeSize
	NonceSize     = types.NonceSize
	TagSize       = types.TagSize
	SignatureSize = types.SignatureSize
)

// ParseVoucherID and ParseAmount are re-exported for the CLI.
var (
	ParseVoucherID = types.ParseVoucherID
	ParseAmount    = types.ParseAmount
)
