package model

// Known renewable government services and their official fees, mirroring
// the backend's fee table. Unknown service types fall back to the
// default fee on the backend side; here they just render unlabeled.
const (
	ServiceNationalID    = "national_id"
	ServiceDriverLicense = "driver_license"
	ServicePassport      = "passport"
	ServiceVehicleReg    = "vehicle_registration"
)

var serviceLabels = map[string]string{
	ServiceNationalID:    "تجديد الهوية الوطنية",
	ServiceDriverLicense: "تجديد رخصة القيادة",
	ServicePassport:      "تجديد جواز السفر",
	ServiceVehicleReg:    "تجديد استمارة المركبة",
}

var serviceFees = map[string]float64{
	ServiceNationalID:    150.0,
	ServiceDriverLicense: 80.0,
	ServicePassport:      164.0,
	ServiceVehicleReg:    100.0,
}

// ServiceLabel returns the display name for a service type, falling
// back to the proposed action's own description when unknown.
func ServiceLabel(serviceType, fallback string) string {
	if label, ok := serviceLabels[serviceType]; ok {
		return label
	}
	return fallback
}

// ServiceFee returns the official fee for a service type. ok is false
// for unknown services, whose fee is decided by the backend.
func ServiceFee(serviceType string) (float64, bool) {
	fee, ok := serviceFees[serviceType]
	return fee, ok
}
