package domain

// ListOptions is shared by every repository list call. Zero values mean
// "first page, default limit, createdAt descending, active records only".
type ListOptions struct {
	Page            int
	Limit           int
	SortField       string
	SortOrder       string // "asc" | "desc"
	IncludeInactive bool
}
