package shipping

type yamatoAddress struct {
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
}

type yamatoShipmentRequest struct {
	ReferenceNumber string        `json:"reference_number"`
	ServiceCode     string        `json:"service_code"`
	Sender          yamatoAddress `json:"sender"`
	Receiver        yamatoAddress `json:"receiver"`
	SizeClass       int           `json:"size_class"`
	WeightGrams     int           `json:"weight_grams"`
	IsCOD           bool          `json:"is_cod"`
	CODAmount       int64         `json:"cod_amount,omitempty"`
}

type yamatoShipmentResponse struct {
	TrackingNumber string `json:"tracking_number"`
	LabelURL       string `json:"label_url"`
}

type yamatoTrackingEvent struct {
	EventID        string `json:"event_id"`
	TrackingNumber string `json:"tracking_number"`
	StatusCode     string `json:"status_code"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	OccurredAt     string `json:"occurred_at"`
}
