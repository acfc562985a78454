// Package tables registers the family table definitions with the core registry.
// Import this package to ensure all tables are registered.
package tables

// Each table file uses init() to register its table.

// nullText stores an empty optional value as NULL.
func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
