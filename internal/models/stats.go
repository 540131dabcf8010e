package models

// EventStats represents per-status message counts for an event
type EventStats struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending_count"`
	Sent         int     `json:"sent_count"`
	Delivered    int     `json:"delivered_count"`
	Failed       int     `json:"failed_count"`
	DeliveryRate float64 `json:"delivery_rate"`
}

// ComputeDeliveryRate sets DeliveryRate to delivered / (delivered + failed),
// or 0 when nothing has reached a terminal state.
func (s *EventStats) ComputeDeliveryRate() {
	denominator := s.Delivered + s.Failed
	if denominator == 0 {
		s.DeliveryRate = 0
		return
	}
	s.DeliveryRate = float64(s.Delivered) / float64(denominator)
}
