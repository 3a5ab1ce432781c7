package catalog

import (
	_ "embed"

	"github.com/ancients-collective/triage/internal/types"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the built-in catalog.
func Default() (types.Catalog, error) {
	return New().Parse(defaultCatalog, "built-in catalog")
}
