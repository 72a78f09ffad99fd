package entitle

import "github.com/jobdeck/entitle/types"

// Re-export common types for convenience so users don't have to import types package.

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Entity constructor
var NewEntity = types.NewEntity
