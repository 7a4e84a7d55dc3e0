package models

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Setting{},
		&Group{},
		&FundCategory{},
		&AttendanceSession{},
		&QRCode{},
		&Donation{},
		&Check{},
		&GatewayEvent{},
		&TrailLog{},
		&Notification{},
		&JobTask{},
	}
}
