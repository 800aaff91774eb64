package ir

import (
	"fmt"
	"slices"
)

// Arg types. Every arg travels as a JSON string; the type says how the
// engine parses it.
const (
	TypeName   = "name"
	TypeAsset  = "asset"
	TypeString = "string"
)

// NamedArg is one parameter of an action.
type NamedArg struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// ActionSig is the ABI entry for one action.
type ActionSig struct {
	Name string     `json:"name"`
	Args []NamedArg `json:"args"`
}

// ValidationError points at the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Check validates args against the signature and reports every problem
// rather than the first.
func (a ActionSig) Check(args IRObject) []ValidationError {
	var errs []ValidationError
	known := make(map[string]bool, len(a.Args))
	for _, arg := range a.Args {
		known[arg.Name] = true
		v, ok := args[arg.Name]
		if !ok {
			if !arg.Optional {
				errs = append(errs, ValidationError{Field: arg.Name, Message: "required"})
			}
			continue
		}
		if _, ok := v.(IRString); !ok {
			errs = append(errs, ValidationError{
				Field:   arg.Name,
				Message: fmt.Sprintf("%s must be a JSON string, got %T", arg.Type, v),
			})
		}
	}
	for _, k := range args.SortedKeys() {
		if !known[k] {
			errs = append(errs, ValidationError{Field: k, Message: fmt.Sprintf("unknown arg for %s", a.Name)})
		}
	}
	return errs
}

// Action names.
const (
	ActionLaunch        = "launch"
	ActionApply         = "apply"
	ActionAccept        = "accept"
	ActionTrust         = "trust"
	ActionUntrust       = "untrust"
	ActionIssue         = "issue"
	ActionTransfer      = "transfer"
	ActionTrustTransfer = "trusttransfer"
	ActionSwap          = "swap"
)

func name(n string) NamedArg { return NamedArg{Name: n, Type: TypeName} }

var transferArgs = []NamedArg{
	name("from"), name("to"), name("token_issuer"),
	{Name: "quantity", Type: TypeAsset},
	{Name: "memo", Type: TypeString, Optional: true},
}

// ABI lists every action the ledger accepts, in name order.
var ABI = []ActionSig{
	{Name: ActionAccept, Args: []NamedArg{name("issuer"), name("candidate")}},
	{Name: ActionApply, Args: []NamedArg{name("issuer"), name("referral")}},
	{Name: ActionIssue, Args: []NamedArg{name("issuer")}},
	{Name: ActionLaunch, Args: []NamedArg{name("genesis")}},
	{Name: ActionSwap, Args: []NamedArg{
		name("from"), name("to"), name("from_token_issuer"), name("to_token_issuer"),
		{Name: "quantity", Type: TypeAsset},
	}},
	{Name: ActionTransfer, Args: transferArgs},
	{Name: ActionTrust, Args: []NamedArg{name("from"), name("to")}},
	{Name: ActionTrustTransfer, Args: transferArgs},
	{Name: ActionUntrust, Args: []NamedArg{name("from"), name("to")}},
}

// LookupAction returns the signature of the named action.
func LookupAction(action string) (ActionSig, bool) {
	i, ok := slices.BinarySearchFunc(ABI, action, func(s ActionSig, n string) int {
		switch {
		case s.Name < n:
			return -1
		case s.Name > n:
			return 1
		}
		return 0
	})
	if !ok {
		return ActionSig{}, false
	}
	return ABI[i], true
}
