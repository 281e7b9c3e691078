package domain

// SearchSnapshot is the product list a search widget currently shows.
// Seq is zero until the first dispatched query is applied.
type SearchSnapshot struct {
	Seq      uint64    `json:"seq"`
	Query    string    `json:"query"`
	Products []Product `json:"products"`
}
