package models

// AllModels lists every table owned by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Exam{},
		&Question{},
		&Attempt{},
		&AttemptAnswer{},
		&ManualGrade{},
		&IntegrityEvent{},
	}
}

// BoolPtr and friends keep optional model fields terse at call sites.
func BoolPtr(v bool) *bool {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}

func IntPtr(v int) *int {
	return &v
}

func StringPtr(v string) *string {
	return &v
}
