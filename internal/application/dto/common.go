package dto

// Límites de paginación de los listados.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest ?limit=&offset= de los listados.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// Normalize limit no positivo toma el valor por defecto y se acota a MaxPageLimit; offset negativo vale 0.
func (p PageRequest) Normalize() PageRequest {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageResponse página aplicada y total de filas del filtro.
type PageResponse struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPageResponse p debe venir normalizada.
func NewPageResponse(p PageRequest, total int) PageResponse {
	return PageResponse{Limit: p.Limit, Offset: p.Offset, Total: total, HasMore: p.Offset+p.Limit < total}
}

// ErrorResponse cuerpo de error de la API. Field solo acompaña a VALIDATION.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
