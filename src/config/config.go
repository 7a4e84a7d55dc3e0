package config

import (
	"fmt"
	"os"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=shepherd port=5432 sslmode=disable TimeZone=Africa/Nairobi"

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// MPESA_TIME_FORMAT is the 14 digit layout used by Daraja for TransTime, TransactionDate and Timestamp.
const MPESA_TIME_FORMAT = "20060102150405"

const MPESA_TIMEZONE = "Africa/Nairobi"

const (
	QR_CODE_TTL            = 24 * time.Hour
	QR_CODE_RETENTION      = 7 * 24 * time.Hour
	STALE_PROCESSING_AFTER = 2 * time.Minute
	DEFAULT_CURRENCY       = "KES"
)

// Queue and topic names. Suffixed per environment with utils.WithSuffix.
const (
	SESSION_EVENTS_QUEUE = "SessionEvents"
	RECEIPTS_QUEUE       = "DonationReceipts"
	STK_QUERY_TOPIC      = "StkStatusQueries"
)

// MpesaLocation falls back to a fixed +03:00 zone when tzdata is unavailable.
func MpesaLocation() *time.Location {
	loc, err := time.LoadLocation(MPESA_TIMEZONE)
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

func APIEnv() string {
	return os.Getenv("API_ENV")
}
