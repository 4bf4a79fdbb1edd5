package dto

import "github.com/vendorlink/vendorlink/internal/entity"

// RiderResponse represents a rider as exposed via transport layers.
// DisplayName carries the fallback naming so clients never re-derive it.
type RiderResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
}

// FromRider maps a domain rider onto its transport shape.
func FromRider(rider entity.Rider) RiderResponse {
	return RiderResponse{
		ID:          rider.ID,
		Name:        rider.Name,
		Phone:       rider.Phone,
		DisplayName: rider.DisplayName(),
	}
}
