package medication

import "github.com/ehr/clinicalquery/internal/platform/payload"

// StatusDraftCreated is the only status intake ever assigns.
const StatusDraftCreated = "draft created"

// OrderIDPrefix marks identifiers issued for draft orders.
const OrderIDPrefix = "draft-"

// MedicationOrderRequest is the body of POST /orders/medication. It is
// validated and answered, never stored.
type MedicationOrderRequest struct {
	PatientID  payload.Field `json:"patient_id"`
	Medication payload.Field `json:"medication"`
	Dose       payload.Field `json:"dose"`
	Route      payload.Field `json:"route"`
	Frequency  payload.Field `json:"frequency"`
}

// MedicationOrderResult is returned once per accepted request.
type MedicationOrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// requiredFields pairs each wire name with its accessor.
func (r MedicationOrderRequest) requiredFields() map[string]payload.Field {
	return map[string]payload.Field{
		"patient_id": r.PatientID,
		"medication": r.Medication,
		"dose":       r.Dose,
		"route":      r.Route,
		"frequency":  r.Frequency,
	}
}
