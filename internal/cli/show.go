package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/ledger"
)

// ShowOptions holds flags for the show subcommands.
type ShowOptions struct {
	*RootOptions
	At string
}

// IssuerView is the JSON form of an issuer row.
type IssuerView struct {
	Identity        string `json:"identity"`
	State           string `json:"state"`
	Referral        string `json:"referral,omitempty"`
	PendingReferral string `json:"pending_referral,omitempty"`
	Supply          string `json:"supply"`
	NextIssue       string `json:"next_issue"`

	// LastIssue is microseconds since the epoch; nil while minting is
	// blocked.
	LastIssue *int64 `json:"last_issue"`
	Payer     string `json:"payer"`
}

func (v IssuerView) String() string {
	last := "blocked"
	if v.LastIssue != nil {
		last = ledger.Timestamp(*v.LastIssue).Time().UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s: %s, referral %s, supply %s, next issue %s, last issue %s",
		v.Identity, v.State, orDash(v.Referral), v.Supply, v.NextIssue, last)
}

// BalanceView is one holding.
type BalanceView struct {
	Owner  string `json:"owner"`
	Issuer string `json:"issuer"`
	Amount string `json:"amount"`
}

// BalanceList prints one holding per line.
type BalanceList []BalanceView

func (l BalanceList) String() string {
	if len(l) == 0 {
		return "No balances."
	}
	var b strings.Builder
	for i, v := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s holds %s of %s", v.Owner, v.Amount, v.Issuer)
	}
	return b.String()
}

// EdgeView is one outbound trust edge.
type EdgeView struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Live      bool   `json:"live"`
	Revocable bool   `json:"revocable"`

	// Expiry is microseconds since the epoch; nil for edges that never
	// expire.
	Expiry *int64 `json:"expiry"`
	Payer  string `json:"payer"`
}

// EdgeList prints one edge per line.
type EdgeList []EdgeView

func (l EdgeList) String() string {
	if len(l) == 0 {
		return "No edges."
	}
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		state := "live"
		if !e.Live {
			state = "expired"
		}
		kind := "irrevocable"
		if e.Revocable {
			kind = "revocable"
		}
		expiry := "never"
		if e.Expiry != nil {
			expiry = ledger.Timestamp(*e.Expiry).Time().UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s -> %s  %s %s, expires %s", e.From, e.To, state, kind, expiry)
	}
	return b.String()
}

// NewShowCommand creates the show command and its subcommands.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Read ledger tables",
		Long: `Read issuers, balances, trust edges and holders from the database.

Examples:
  ubi show issuer alice
  ubi show balance alice
  ubi show balance alice bob
  ubi show edges alice --at 2026-01-02T00:00:00Z
  ubi show holders alice --format json`,
	}
	cmd.PersistentFlags().StringVar(&opts.At, "at", "", "evaluate edge liveness at this RFC 3339 time (default now)")

	cmd.AddCommand(&cobra.Command{
		Use:   "issuer <identity>",
		Short: "Show an issuer row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowIssuer(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "balance <owner> [issuer]",
		Short: "Show an owner's holdings",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowBalance(opts, args, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "edges <from>",
		Short: "Show outbound trust edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowEdges(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "holders <issuer>",
		Short: "Show everyone holding an issuer's currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowHolders(opts, args[0], cmd)
		},
	})

	return cmd
}

func runShowIssuer(opts *ShowOptions, id string, cmd *cobra.Command) error {
	identity, err := parseNameArg("identity", id)
	if err != nil {
		return err
	}
	st, eng, err := opts.openEngine(commandContext(cmd), nil)
	if err != nil {
		return err
	}
	defer st.Close()

	var (
		is    ledger.Issuer
		found bool
	)
	eng.View(func(v ledger.View) {
		is, found = v.Issuer(identity)
	})
	out := opts.formatter(cmd)
	if !found {
		_ = out.Error(string(ledger.CodeNotApplied), fmt.Sprintf("%s has not applied", identity), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("no issuer %s", identity))
	}
	return out.Success(issuerView(is))
}

func runShowBalance(opts *ShowOptions, args []string, cmd *cobra.Command) error {
	owner, err := parseNameArg("owner", args[0])
	if err != nil {
		return err
	}
	var issuer ledger.Name
	if len(args) == 2 {
		if issuer, err = parseNameArg("issuer", args[1]); err != nil {
			return err
		}
	}

	st, eng, err := opts.openEngine(commandContext(cmd), nil)
	if err != nil {
		return err
	}
	defer st.Close()

	list := BalanceList{}
	sym := eng.Contract().Params().Symbol
	eng.View(func(v ledger.View) {
		if issuer != "" {
			q := ledger.BalanceOf(v, owner, issuer, sym)
			list = append(list, BalanceView{Owner: string(owner), Issuer: string(issuer), Amount: q.String()})
			return
		}
		for _, b := range ledger.Balances(v, owner) {
			list = append(list, BalanceView{Owner: string(owner), Issuer: string(b.Issuer), Amount: b.Amount.String()})
		}
	})
	return opts.formatter(cmd).Success(list)
}

func runShowEdges(opts *ShowOptions, id string, cmd *cobra.Command) error {
	from, err := parseNameArg("from", id)
	if err != nil {
		return err
	}
	now, err := parseAt(opts.At)
	if err != nil {
		return err
	}

	st, eng, err := opts.openEngine(commandContext(cmd), nil)
	if err != nil {
		return err
	}
	defer st.Close()

	list := EdgeList{}
	eng.View(func(v ledger.View) {
		for _, e := range ledger.Edges(v, from) {
			list = append(list, edgeView(from, e, now))
		}
	})
	return opts.formatter(cmd).Success(list)
}

func runShowHolders(opts *ShowOptions, id string, cmd *cobra.Command) error {
	issuer, err := parseNameArg("issuer", id)
	if err != nil {
		return err
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	holders, err := st.ReadHolders(commandContext(cmd), string(issuer))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read holders", err)
	}
	list := make(BalanceList, 0, len(holders))
	for _, h := range holders {
		list = append(list, BalanceView{Owner: string(h.Owner), Issuer: string(issuer), Amount: h.Amount.String()})
	}
	return opts.formatter(cmd).Success(list)
}

func issuerView(is ledger.Issuer) IssuerView {
	v := IssuerView{
		Identity:        string(is.Identity),
		State:           is.State.String(),
		Referral:        string(is.Referral),
		PendingReferral: string(is.PendingReferral),
		Supply:          is.Supply.String(),
		NextIssue:       is.NextIssue.String(),
		Payer:           string(is.Payer),
	}
	if !is.IsAccepted() {
		v.Referral = ""
	}
	if is.LastIssue.Open {
		at := int64(is.LastIssue.At)
		v.LastIssue = &at
	}
	return v
}

func edgeView(from ledger.Name, e ledger.Edge, now ledger.Timestamp) EdgeView {
	v := EdgeView{
		From:      string(from),
		To:        string(e.Peer),
		Live:      e.Live(now),
		Revocable: e.Revocable,
		Payer:     string(e.Payer),
	}
	if e.Expiry.Finite {
		at := int64(e.Expiry.At)
		v.Expiry = &at
	}
	return v
}

func parseNameArg(field, s string) (ledger.Name, error) {
	n, err := ledger.ParseName(s)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid "+field, err)
	}
	return n, nil
}

// parseAt reads an RFC 3339 time, defaulting to now.
func parseAt(s string) (ledger.Timestamp, error) {
	if s == "" {
		return ledger.FromTime(time.Now()), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid --at", err)
	}
	return ledger.FromTime(t), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
