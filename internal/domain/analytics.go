package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is a per-key offer rollup computed for a single request
type Aggregate struct {
	GroupKey      string  `json:"groupKey"`
	TotalValue    float64 `json:"totalValue"`
	OfferCount    int     `json:"offerCount"`
	WonValue      float64 `json:"wonValue"`
	WonCount      int     `json:"wonCount"`
	LostValue     float64 `json:"lostValue"`
	LostCount     int     `json:"lostCount"`
	OpenValue     float64 `json:"openValue"`
	OpenCount     int     `json:"openCount"`
	ExpectedValue float64 `json:"expectedValue"` // probability weighted open offers above the cutoff
}

// PacingResult projects the current month against its target
type PacingResult struct {
	DaysInMonth                 int     `json:"daysInMonth"`
	DayOfMonth                  int     `json:"dayOfMonth"`
	RequiredDailyRate           float64 `json:"requiredDailyRate"`
	CurrentDailyRate            float64 `json:"currentDailyRate"`
	PacePercentage              float64 `json:"pacePercentage"`
	OnTrack                     bool    `json:"onTrack"`
	RemainingGap                float64 `json:"remainingGap"`
	NeededDailyRateForRemainder float64 `json:"neededDailyRateForRemainder"`
	ProjectedValue              float64 `json:"projectedValue"`
}

// ReconciledTarget is a target paired with the offers it covers
type ReconciledTarget struct {
	Target
	ScopeName           string        `json:"scopeName"`
	ActualValue         float64       `json:"actualValue"`
	ActualOfferCount    int           `json:"actualOfferCount"`
	OffersValueTotal    float64       `json:"offersValueTotal"`
	OffersCount         int           `json:"offersCount"`
	Achievement         float64       `json:"achievement"`
	Variance            float64       `json:"variance"`
	VariancePercentage  float64       `json:"variancePercentage"`
	ExpectedOffersValue float64       `json:"expectedOffersValue"`
	ExpectedAchievement float64       `json:"expectedAchievement"`
	OpenFunnel          float64       `json:"openFunnel"`
	ConversionRate      float64       `json:"conversionRate"`
	CountAchievement    *float64      `json:"countAchievement,omitempty"`
	Inconsistent        bool          `json:"inconsistent,omitempty"` // open funnel went negative
	Pacing              *PacingResult `json:"pacing,omitempty"`
}

// AchievementRequest selects the targets and offers of an achievement report
type AchievementRequest struct {
	ZoneID      *uuid.UUID   `json:"zoneId,omitempty"`
	UserID      *uuid.UUID   `json:"userId,omitempty"`
	ProductType *ProductType `json:"productType,omitempty"`
	Period      string       `json:"period" validate:"required"`
	PeriodType  PeriodType   `json:"periodType" validate:"required,oneof=MONTHLY YEARLY"`
	From        *time.Time   `json:"from,omitempty"`
	To          *time.Time   `json:"to,omitempty"`
}

// AchievementSummary totals the reconciled targets of a report
type AchievementSummary struct {
	TotalTargetValue         float64 `json:"totalTargetValue"`
	TotalActualValue         float64 `json:"totalActualValue"`
	TotalAchievement         float64 `json:"totalAchievement"`
	TotalVariance            float64 `json:"totalVariance"`
	TotalExpectedValue       float64 `json:"totalExpectedValue"`
	TotalExpectedAchievement float64 `json:"totalExpectedAchievement"`
	TotalZoneTargets         int     `json:"totalZoneTargets"`
	TotalUserTargets         int     `json:"totalUserTargets"`
	AchievedTargets          int     `json:"achievedTargets"`
	ZoneTargetValue          float64 `json:"zoneTargetValue"`
	UserTargetValue          float64 `json:"userTargetValue"`
	Basis                    string  `json:"basis"` // which target set the totals are computed from
}

// AchievementReport is the reconciled view of one period
type AchievementReport struct {
	Period      Period             `json:"period"`
	ZoneTargets []ReconciledTarget `json:"zoneTargets"`
	UserTargets []ReconciledTarget `json:"userTargets"`
	Summary     AchievementSummary `json:"summary"`
	Pacing      *PacingResult      `json:"pacing,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// ProductTypeRow is one normalized product type line
type ProductTypeRow struct {
	ProductType ProductType `json:"productType"`
	Count       int         `json:"count"`
	Value       float64     `json:"value"`
	WonValue    float64     `json:"wonValue"`
	WonCount    int         `json:"wonCount"`
}

// ZoneRow is one normalized zone line
type ZoneRow struct {
	ZoneID   uuid.UUID `json:"zoneId"`
	ZoneName string    `json:"zoneName"`
	Count    int       `json:"count"`
	Value    float64   `json:"value"`
	WonValue float64   `json:"wonValue"`
	WonCount int       `json:"wonCount"`
}

// ParetoRow is a product type with its running share of the won total
type ParetoRow struct {
	ProductType          ProductType `json:"productType"`
	Value                float64     `json:"value"`
	Percentage           float64     `json:"percentage"`
	CumulativePercentage float64     `json:"cumulativePercentage"`
	InTopEighty          bool        `json:"inTopEighty"`
}

// HistogramBucket counts reconciled targets in an achievement band.
// Max is nil for the open-ended top band.
type HistogramBucket struct {
	Label string   `json:"label"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
	Count int      `json:"count"`
}

// PivotRow is one zone of the zone x product type stacked view
type PivotRow struct {
	ZoneID   uuid.UUID               `json:"zoneId"`
	ZoneName string                  `json:"zoneName"`
	Values   map[ProductType]float64 `json:"values"`
	Total    float64                 `json:"total"`
}

// UserZoneRow is a user x zone cell of the performance matrix
type UserZoneRow struct {
	UserID     uuid.UUID `json:"userId"`
	UserName   string    `json:"userName"`
	ZoneID     uuid.UUID `json:"zoneId"`
	ZoneName   string    `json:"zoneName"`
	HomeZone   bool      `json:"homeZone"`
	TotalValue float64   `json:"totalValue"`
	OfferCount int       `json:"offerCount"`
	WonValue   float64   `json:"wonValue"`
	WonCount   int       `json:"wonCount"`
}

// TimeSeriesPoint is one month of a yearly trend
type TimeSeriesPoint struct {
	Month              string   `json:"month"`
	TotalValue         float64  `json:"totalValue"`
	OfferCount         int      `json:"offerCount"`
	WonValue           float64  `json:"wonValue"`
	WonCount           int      `json:"wonCount"`
	CumulativeWonValue float64  `json:"cumulativeWonValue"`
	TargetValue        *float64 `json:"targetValue,omitempty"`
	Achievement        *float64 `json:"achievement,omitempty"`
}

// ProductTypeBreakdown bundles the normalized rows with their Pareto ordering
type ProductTypeBreakdown struct {
	Rows   []ProductTypeRow `json:"rows"`
	Pareto []ParetoRow      `json:"pareto"`
	Total  float64          `json:"total"`
}

// UpsertTargetRequest creates or replaces the target with the same key
type UpsertTargetRequest struct {
	ScopeType        ScopeType    `json:"scopeType" validate:"required,oneof=ZONE USER"`
	ScopeID          uuid.UUID    `json:"scopeId" validate:"required"`
	ProductType      *ProductType `json:"productType,omitempty"`
	Period           string       `json:"period" validate:"required"`
	PeriodType       PeriodType   `json:"periodType" validate:"required,oneof=MONTHLY YEARLY"`
	TargetValue      float64      `json:"targetValue" validate:"gte=0"`
	TargetOfferCount *int         `json:"targetOfferCount,omitempty" validate:"omitempty,gte=0"`
}

// RangeRequest scopes the offer-only analytics views
type RangeRequest struct {
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
	ZoneID *uuid.UUID `json:"zoneId,omitempty"`
}

// TimeSeriesRequest asks for the monthly series of one year
type TimeSeriesRequest struct {
	Year   string     `json:"year" validate:"required,len=4,numeric"`
	ZoneID *uuid.UUID `json:"zoneId,omitempty"`
	UserID *uuid.UUID `json:"userId,omitempty"`
}

// RankingRequest asks for the best or worst achieving targets of a period
type RankingRequest struct {
	Period     string     `json:"period" validate:"required"`
	PeriodType PeriodType `json:"periodType" validate:"required,oneof=MONTHLY YEARLY"`
	Scope      ScopeType  `json:"scope" validate:"required,oneof=ZONE USER"`
	N          int        `json:"n" validate:"gte=0,lte=100"`
	Order      string     `json:"order" validate:"omitempty,oneof=asc desc"`
}
