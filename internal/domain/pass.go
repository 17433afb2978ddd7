package domain

import "time"

// PassType represents the kind of travel pass.
type PassType string

const (
	PassTypeMonthly    PassType = "MONTHLY"
	PassTypeStudent    PassType = "STUDENT"
	PassTypeVidyaVahan PassType = "VIDYA_VAHAN"
)

// PassDateLayout is the calendar-day format stored in UsedDates.
const PassDateLayout = "2006-01-02"

// Pass is a multi-day travel pass minted on the ledger.
type Pass struct {
	ID           string
	UserID       string
	Origin       string
	Destination  string
	Type         PassType
	ValidityDays int
	Price        int64
	UsedDates    []string
	PurchasedAt  time.Time
	ExpiresAt    time.Time
	NFTTokenID   string
}

// UsedOn reports whether the pass was already used on the given day.
func (p *Pass) UsedOn(day string) bool {
	for _, d := range p.UsedDates {
		if d == day {
			return true
		}
	}
	return false
}
