package cube

import "golang.org/x/text/unicode/norm"

// UnknownCardName is used for migrations whose upstream record carries no
// metadata.
const UnknownCardName = "Unknown Card"

// Identity is a card's canonical (id, name) pair.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MigrationMap maps a raw card id to its canonical identity.
// Ids with no recorded migration are absent and resolve to themselves.
type MigrationMap map[string]Identity

// Resolver resolves raw card identities through a MigrationMap.
// A nil map is valid and resolves every identity to itself.
type Resolver struct {
	migrations MigrationMap
}

// NewResolver creates a resolver over the given migration map.
func NewResolver(migrations MigrationMap) *Resolver {
	return &Resolver{migrations: migrations}
}

// Resolve returns the canonical identity for (rawID, rawName).
func (r *Resolver) Resolve(rawID, rawName string) Identity {
	if r != nil {
		if ident, ok := r.migrations[rawID]; ok {
			return ident
		}
	}
	return Identity{ID: rawID, Name: rawName}
}

// ResolveCard is Resolve applied to a card's id and name.
func (r *Resolver) ResolveCard(c Card) Identity {
	return r.Resolve(c.ID, c.Name)
}

// DisplayName returns the name a card should be rendered with.
func (r *Resolver) DisplayName(c Card) string {
	return r.ResolveCard(c).Name
}

// Len returns the number of migration entries.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.migrations)
}

// SameName compares two card names after NFC normalization, so composed and
// decomposed spellings of the same name match.
func SameName(a, b string) bool {
	if a == b {
		return true
	}
	return norm.NFC.String(a) == norm.NFC.String(b)
}
