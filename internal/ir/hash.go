package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep hashes of different record kinds from colliding.
const (
	DomainInvocation = "ubi/invocation/v1"
	DomainCompletion = "ubi/completion/v1"
	DomainState      = "ubi/state/v1"
)

// hashWithDomain returns hex(SHA256(domain || 0x00 || data)).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID is the content address of an invocation. Replaying the same
// action at the same position in the log yields the same ID.
func InvocationID(flowToken, action string, args IRObject, seq, at int64, caller string) (string, error) {
	canonical, err := MarshalCanonical(IRObject{
		"flow_token": IRString(flowToken),
		"action":     IRString(action),
		"args":       args,
		"seq":        IRInt(seq),
		"time":       IRInt(at),
		"caller":     IRString(caller),
	})
	if err != nil {
		return "", fmt.Errorf("invocation id: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID is the content address of a completion.
func CompletionID(invocationID string, outcome Outcome, code, message string, seq int64) (string, error) {
	canonical, err := MarshalCanonical(IRObject{
		"invocation_id": IRString(invocationID),
		"outcome":       IRString(outcome),
		"code":          IRString(code),
		"message":       IRString(message),
		"seq":           IRInt(seq),
	})
	if err != nil {
		return "", fmt.Errorf("completion id: %w", err)
	}
	return hashWithDomain(DomainCompletion, canonical), nil
}

// StateHash digests a snapshot of the ledger tables.
func StateHash(tables IRObject) (string, error) {
	canonical, err := MarshalCanonical(tables)
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustInvocationID is InvocationID for tests; it panics on error.
func MustInvocationID(flowToken, action string, args IRObject, seq, at int64, caller string) string {
	id, err := InvocationID(flowToken, action, args, seq, at, caller)
	if err != nil {
		panic(err)
	}
	return id
}
