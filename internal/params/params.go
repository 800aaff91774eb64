// Package params loads ledger parameters from CUE files.
//
// A params file is unified with an embedded schema, so bounds checks and
// defaults live in one place. Files only need the fields they change:
//
//	params: {
//		initial:    "10.0000"
//		issue_wait: "1h"
//	}
package params

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ubi/internal/asset"
	"github.com/roach88/ubi/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

// Schema returns the CUE schema params files are checked against.
func Schema() string {
	return schemaCUE
}

// Document is the decoded form of a params file.
type Document struct {
	Symbol     string `json:"symbol"`
	Precision  int    `json:"precision"`
	Initial    string `json:"initial"`
	Delta      string `json:"delta"`
	RoyaltyPct int64  `json:"royalty_pct"`
	IssueWait  string `json:"issue_wait"`
	Grace      string `json:"grace"`
	EdgeCap    int    `json:"edge_cap"`
	MemoMax    int    `json:"memo_max"`
}

// LoadError points at the offending CUE position when there is one.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a params file. An empty path returns the defaults.
func Load(path string) (ledger.Params, error) {
	if path == "" {
		return ledger.DefaultParams(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Params{}, fmt.Errorf("read params: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles src, unifies it with the schema and converts the result.
// filename is used in error positions only.
func Parse(filename string, src []byte) (ledger.Params, error) {
	doc, err := Decode(filename, src)
	if err != nil {
		return ledger.Params{}, err
	}
	return doc.Params()
}

// Decode is Parse without the conversion to ledger.Params.
func Decode(filename string, src []byte) (Document, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Document{}, formatCUEError(err)
	}
	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Document{}, formatCUEError(err)
	}

	v := schema.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Document{}, formatCUEError(err)
	}

	var doc Document
	if err := v.LookupPath(cue.ParsePath("params")).Decode(&doc); err != nil {
		return Document{}, formatCUEError(err)
	}
	return doc, nil
}

// Default returns the document for ledger.DefaultParams.
func Default() Document {
	doc, err := Decode("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("params: schema defaults do not decode: %v", err))
	}
	return doc
}

// Params converts the document, checking what CUE cannot express: the
// precision of the quantities and the duration syntax.
func (d Document) Params() (ledger.Params, error) {
	sym := asset.Symbol{Code: d.Symbol, Precision: uint8(d.Precision)}

	initial, err := quantity("initial", d.Initial, sym)
	if err != nil {
		return ledger.Params{}, err
	}
	delta, err := quantity("delta", d.Delta, sym)
	if err != nil {
		return ledger.Params{}, err
	}
	wait, err := duration("issue_wait", d.IssueWait)
	if err != nil {
		return ledger.Params{}, err
	}
	grace, err := duration("grace", d.Grace)
	if err != nil {
		return ledger.Params{}, err
	}

	p := ledger.Params{
		Symbol:         sym,
		Initial:        initial,
		Delta:          delta,
		RoyaltyPercent: d.RoyaltyPct,
		IssueWait:      wait,
		Grace:          grace,
		EdgeCap:        d.EdgeCap,
		MemoMax:        d.MemoMax,
	}
	if err := p.Validate(); err != nil {
		return ledger.Params{}, &LoadError{Field: "params", Message: err.Error()}
	}
	return p, nil
}

func quantity(field, amount string, sym asset.Symbol) (asset.Quantity, error) {
	q, err := asset.Parse(amount + " " + sym.Code)
	if err != nil {
		return asset.Quantity{}, &LoadError{Field: field, Message: err.Error()}
	}
	if q.Symbol != sym {
		return asset.Quantity{}, &LoadError{
			Field:   field,
			Message: fmt.Sprintf("%q must have %d fractional digits", amount, sym.Precision),
		}
	}
	return q, nil
}

func duration(field, s string) (ledger.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, &LoadError{Field: field, Message: err.Error()}
	}
	if d < 0 {
		return 0, &LoadError{Field: field, Message: "must not be negative"}
	}
	return ledger.FromStd(d), nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
