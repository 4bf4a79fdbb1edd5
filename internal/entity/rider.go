package entity

import "strings"

// Rider is a delivery agent available to the vendor.
type Rider struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DisplayName returns the rider's name, or "Rider #<last4>" derived from the
// phone number when the name is empty or whitespace-only.
func (r Rider) DisplayName() string {
	name := strings.TrimSpace(r.Name)
	if name != "" {
		return r.Name
	}
	phone := strings.TrimSpace(r.Phone)
	if len(phone) > 4 {
		phone = phone[len(phone)-4:]
	}
	return "Rider #" + phone
}
