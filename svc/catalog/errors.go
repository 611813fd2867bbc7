package catalog

import "errors"

var (
	ErrFailedToParseCatalog = errors.New("catalog: failed to parse plan catalog")
	ErrEmptyCatalog         = errors.New("catalog: no plans defined")
	ErrInvalidPlan          = errors.New("catalog: invalid plan definition")
	ErrNilProvider          = errors.New("catalog: payment provider is required")
)
