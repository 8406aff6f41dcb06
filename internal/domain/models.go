package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns an id when the caller did not provide one
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ProductType is the closed set of product lines an offer can belong to.
// Adding a member here must be mirrored in AllProductTypes.
type ProductType string

const (
	ProductTypeMachine         ProductType = "MACHINE"
	ProductTypeSpareParts      ProductType = "SPARE_PARTS"
	ProductTypeConsumables     ProductType = "CONSUMABLES"
	ProductTypeAccessories     ProductType = "ACCESSORIES"
	ProductTypeServiceContract ProductType = "SERVICE_CONTRACT"
	ProductTypeUpgradeKit      ProductType = "UPGRADE_KIT"
	ProductTypeRelocation      ProductType = "RELOCATION"
	ProductTypeRefurbished     ProductType = "REFURBISHED"
	ProductTypeSoftware        ProductType = "SOFTWARE"
)

var allProductTypes = []ProductType{
	ProductTypeMachine,
	ProductTypeSpareParts,
	ProductTypeConsumables,
	ProductTypeAccessories,
	ProductTypeServiceContract,
	ProductTypeUpgradeKit,
	ProductTypeRelocation,
	ProductTypeRefurbished,
	ProductTypeSoftware,
}

// AllProductTypes returns the product type enumeration in display order.
// The returned slice is a copy and may be modified by the caller.
func AllProductTypes() []ProductType {
	out := make([]ProductType, len(allProductTypes))
	copy(out, allProductTypes)
	return out
}

// IsValid reports whether p is a member of the enumeration
func (p ProductType) IsValid() bool {
	for _, pt := range allProductTypes {
		if pt == p {
			return true
		}
	}
	return false
}

// OfferStage represents where an offer is in the sales pipeline
type OfferStage string

const (
	OfferStageInitial             OfferStage = "INITIAL"
	OfferStageQualified           OfferStage = "QUALIFIED"
	OfferStageProposalSent        OfferStage = "PROPOSAL_SENT"
	OfferStageTechnicalDiscussion OfferStage = "TECHNICAL_DISCUSSION"
	OfferStageNegotiation         OfferStage = "NEGOTIATION"
	OfferStageFinalApproval       OfferStage = "FINAL_APPROVAL"
	OfferStageWon                 OfferStage = "WON"
	OfferStageLost                OfferStage = "LOST"
)

var allOfferStages = []OfferStage{
	OfferStageInitial,
	OfferStageQualified,
	OfferStageProposalSent,
	OfferStageTechnicalDiscussion,
	OfferStageNegotiation,
	OfferStageFinalApproval,
	OfferStageWon,
	OfferStageLost,
}

// AllOfferStages returns the stage enumeration in pipeline order
func AllOfferStages() []OfferStage {
	out := make([]OfferStage, len(allOfferStages))
	copy(out, allOfferStages)
	return out
}

// IsValid reports whether s is a member of the enumeration
func (s OfferStage) IsValid() bool {
	for _, st := range allOfferStages {
		if st == s {
			return true
		}
	}
	return false
}

// IsWon reports whether the offer converted into an order
func (s OfferStage) IsWon() bool {
	return s == OfferStageWon
}

// IsTerminal reports whether no further stage transition is expected
func (s OfferStage) IsTerminal() bool {
	return s == OfferStageWon || s == OfferStageLost
}

// ScopeType identifies what a target is assigned to
type ScopeType string

const (
	ScopeTypeZone ScopeType = "ZONE"
	ScopeTypeUser ScopeType = "USER"
)

// IsValid reports whether s is a known scope type
func (s ScopeType) IsValid() bool {
	return s == ScopeTypeZone || s == ScopeTypeUser
}

// PeriodType is the granularity of a target period
type PeriodType string

const (
	PeriodTypeMonthly PeriodType = "MONTHLY"
	PeriodTypeYearly  PeriodType = "YEARLY"
)

// IsValid reports whether p is a known period type
func (p PeriodType) IsValid() bool {
	return p == PeriodTypeMonthly || p == PeriodTypeYearly
}

// Zone is a sales territory
type Zone struct {
	BaseModel
	Name     string `gorm:"type:varchar(200);not null;uniqueIndex" json:"name"`
	IsActive bool   `gorm:"not null;default:true;column:is_active;index" json:"isActive"`
}

// User is a sales person that can own offers and carry targets
type User struct {
	BaseModel
	Name     string     `gorm:"type:varchar(200);not null" json:"name"`
	Email    string     `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	ZoneID   *uuid.UUID `gorm:"type:uuid;column:zone_id;index" json:"zoneId,omitempty"`
	IsActive bool       `gorm:"not null;default:true;column:is_active" json:"isActive"`
}

// Offer is a sales opportunity. The analytics engine only reads offers.
type Offer struct {
	BaseModel
	OfferReference        string       `gorm:"type:varchar(50);column:offer_reference;index" json:"offerReference"`
	Title                 string       `gorm:"type:varchar(200)" json:"title"`
	CustomerName          string       `gorm:"type:varchar(200);column:customer_name" json:"customerName,omitempty"`
	Stage                 OfferStage   `gorm:"type:varchar(50);not null;index" json:"stage"`
	ZoneID                uuid.UUID    `gorm:"type:uuid;not null;column:zone_id;index" json:"zoneId"`
	OwnerID               uuid.UUID    `gorm:"type:uuid;not null;column:owner_id;index" json:"ownerId"`
	ProductType           *ProductType `gorm:"type:varchar(50);column:product_type;index" json:"productType,omitempty"`
	ProbabilityPercentage *int         `gorm:"column:probability_percentage" json:"probabilityPercentage,omitempty"`
	PoValue               *float64     `gorm:"type:decimal(15,2);column:po_value" json:"poValue,omitempty"`
	OfferValue            *float64     `gorm:"type:decimal(15,2);column:offer_value" json:"offerValue,omitempty"`
}

// Target is a revenue goal for a zone or user over a month or a year.
// ProductType nil means the target covers all product types combined.
type Target struct {
	BaseModel
	ScopeType        ScopeType    `gorm:"type:varchar(10);not null;column:scope_type;uniqueIndex:idx_targets_key" json:"scopeType"`
	ScopeID          uuid.UUID    `gorm:"type:uuid;not null;column:scope_id;uniqueIndex:idx_targets_key" json:"scopeId"`
	ProductType      *ProductType `gorm:"type:varchar(50);column:product_type;uniqueIndex:idx_targets_key" json:"productType,omitempty"`
	Period           string       `gorm:"type:varchar(7);not null;uniqueIndex:idx_targets_key" json:"period"`
	PeriodType       PeriodType   `gorm:"type:varchar(10);not null;column:period_type;uniqueIndex:idx_targets_key" json:"periodType"`
	TargetValue      float64      `gorm:"type:decimal(15,2);not null;default:0;column:target_value" json:"targetValue"`
	TargetOfferCount *int         `gorm:"column:target_offer_count" json:"targetOfferCount,omitempty"`
}

// TargetKey identifies a target uniquely
type TargetKey struct {
	ScopeType   ScopeType
	ScopeID     uuid.UUID
	ProductType ProductType // empty for all product types
	Period      string
	PeriodType  PeriodType
}

// Key returns the uniqueness key of the target
func (t *Target) Key() TargetKey {
	k := TargetKey{
		ScopeType:  t.ScopeType,
		ScopeID:    t.ScopeID,
		Period:     t.Period,
		PeriodType: t.PeriodType,
	}
	if t.ProductType != nil {
		k.ProductType = *t.ProductType
	}
	return k
}

// String renders the key for logs and error messages
func (k TargetKey) String() string {
	pt := string(k.ProductType)
	if pt == "" {
		pt = "ALL"
	}
	return string(k.ScopeType) + "/" + k.ScopeID.String() + "/" + pt + "/" + string(k.PeriodType) + "/" + k.Period
}
