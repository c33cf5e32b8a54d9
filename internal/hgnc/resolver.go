package hgnc

import (
	"errors"
	"fmt"
)

// Scheme names the identifier namespace a Resolver returns.
type Scheme string

const (
	SchemeEnsembl Scheme = "ensembl_id"
	SchemeHGNC    Scheme = "hgnc_id"
	SchemeEntrez  Scheme = "entrez_id"
)

// ParseScheme validates a configured scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeEnsembl, SchemeHGNC, SchemeEntrez:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("unknown identifier scheme %q: must be one of %s, %s, %s",
			s, SchemeEnsembl, SchemeHGNC, SchemeEntrez)
	}
}

// ErrUnresolvedIdentifier matches every *UnresolvedIdentifierError.
var ErrUnresolvedIdentifier = errors.New("unresolved identifier")

// UnresolvedIdentifierError reports a symbol with no identifier in the table.
type UnresolvedIdentifierError struct {
	Symbol string
	Scheme Scheme
}

func (e *UnresolvedIdentifierError) Error() string {
	return fmt.Sprintf("%v: no %s for gene symbol %q", ErrUnresolvedIdentifier, e.Scheme, e.Symbol)
}

func (e *UnresolvedIdentifierError) Is(target error) bool {
	return target == ErrUnresolvedIdentifier
}

// Resolver maps gene symbols onto one identifier scheme.
type Resolver struct {
	table  *Table
	scheme Scheme
}

// NewResolver binds a loaded table to a scheme.
func NewResolver(table *Table, scheme Scheme) (*Resolver, error) {
	if table == nil {
		return nil, errors.New("hgnc table must be loaded before resolving")
	}
	if _, err := ParseScheme(string(scheme)); err != nil {
		return nil, err
	}
	return &Resolver{table: table, scheme: scheme}, nil
}

// Scheme returns the identifier namespace of r.
func (r *Resolver) Scheme() Scheme {
	return r.scheme
}

// Resolve returns the identifier for symbol or an *UnresolvedIdentifierError.
func (r *Resolver) Resolve(symbol string) (string, error) {
	rec, ok := r.table.Lookup(symbol)
	if !ok {
		return "", &UnresolvedIdentifierError{Symbol: symbol, Scheme: r.scheme}
	}

	var id string
	switch r.scheme {
	case SchemeEnsembl:
		id = rec.EnsemblID
	case SchemeHGNC:
		id = rec.HGNCID
	case SchemeEntrez:
		id = rec.EntrezID
	}
	if id == "" {
		return "", &UnresolvedIdentifierError{Symbol: symbol, Scheme: r.scheme}
	}
	return id, nil
}
