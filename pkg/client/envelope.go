package client

import "encoding/json"

// Meta is the metadata block of a query response.
type Meta struct {
	// TotalDoc is the server-reported number of documents matching the query,
	// independent of the _limit requested.
	TotalDoc int `json:"total_doc"`

	// TimeStamp is the server-side time the response was generated.
	TimeStamp string `json:"time_stamp,omitempty"`

	// MaxLimit is the largest _limit the endpoint accepts.
	MaxLimit int `json:"max_limit,omitempty"`
}

// Page is the response envelope of one physical request:
// {"data": [...], "meta": {"total_doc": N, ...}}.
type Page struct {
	Data []json.RawMessage `json:"data"`
	Meta *Meta             `json:"meta,omitempty"`
}

// Subtotal returns the server-reported matching-document count for this
// page's query, defaulting to 1 when the response carries no meta block
// (sub-url endpoints omit it).
func (p *Page) Subtotal() int {
	if p.Meta == nil {
		return 1
	}
	return p.Meta.TotalDoc
}
