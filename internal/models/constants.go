package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

const (
	RoleStudent = "student"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

const (
	// DefaultPaymentSuccessRate вероятность успеха симулированного платежа
	DefaultPaymentSuccessRate = 0.9

	// DefaultSnapshotIntervalMinutes интервал полного зеркалирования
	DefaultSnapshotIntervalMinutes = 60

	// WorkerQueueSize размер очереди воркера синхронизации
	WorkerQueueSize = 128

	// DefaultExportRangeMonthsBefore количество месяцев для экспорта по умолчанию
	DefaultExportRangeMonthsBefore = 1
	DefaultExportRangeMonthsAfter  = 2
)

// ActiveStatus reports whether a booking status still holds its time slot.
func ActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// TerminalStatus reports whether a booking status permits no further transitions.
func TerminalStatus(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}
