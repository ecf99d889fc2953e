package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AnalyticsSummary struct {
	EventID         uuid.UUID       `json:"eventId"`
	EventTitle      string          `json:"eventTitle"`
	StartsAt        time.Time       `json:"startsAt"`
	TotalGuests     int             `json:"totalGuests"`
	CheckedIn       int             `json:"checkedIn"`
	NotCheckedIn    int             `json:"notCheckedIn"`
	CheckInRate     decimal.Decimal `json:"checkInRate"` // percent, two decimals
	InvitationsSent int             `json:"invitationsSent"`
	PhotosTaken     int             `json:"photosTaken"`
}

type HourlyBucket struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

type UsherStat struct {
	UsherName  string `json:"usherName"`
	UsherEmail string `json:"usherEmail"`
	CheckIns   int    `json:"checkIns"`
	Scans      int    `json:"scans"`
	Sessions   int    `json:"sessions"`
}

type Analytics struct {
	Summary     AnalyticsSummary `json:"summary"`
	Hourly      []HourlyBucket   `json:"hourly"`
	Ushers      []UsherStat      `json:"ushers"`
	GeneratedAt time.Time        `json:"generatedAt"`
}
