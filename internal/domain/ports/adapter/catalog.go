package adapter

import "context"

// CourseInfo is the slice of the catalog this service needs to price a
// purchase.
type CourseInfo struct {
	ID    string
	Name  string
	Price int64 // minor units
}

// CourseCatalog resolves course prices. Unknown ids are omitted from the
// result rather than erroring; the caller decides whether an empty result
// is fatal.
type CourseCatalog interface {
	Prices(ctx context.Context, courseIDs []string) ([]CourseInfo, error)
}
