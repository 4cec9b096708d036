package models

// DomainCode identifies one of the business domains sharing the request workflow.
type DomainCode string

const (
	DomainAcademic DomainCode = "academic"
	DomainTravel   DomainCode = "travel"
	DomainVAPVAE   DomainCode = "vapvae"
)

// RequestStatus is a workflow state for a request.
type RequestStatus string

// Statuses shared by every domain.
const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// Academic progression.
const (
	StatusInfoReceived  RequestStatus = "info_received"
	StatusPlanValidated RequestStatus = "plan_validated"
	StatusInWriting     RequestStatus = "in_writing"
	StatusInReview      RequestStatus = "in_review"
)

// Travel progression.
const (
	StatusDocsReceived         RequestStatus = "docs_received"
	StatusApplicationSubmitted RequestStatus = "application_submitted"
	StatusAppointmentScheduled RequestStatus = "appointment_scheduled"
	StatusDecisionReceived     RequestStatus = "decision_received"
)

// VAP/VAE progression.
const (
	StatusEligibilityReview  RequestStatus = "eligibility_review"
	StatusDossierPreparation RequestStatus = "dossier_preparation"
	StatusSubmittedToJury    RequestStatus = "submitted_to_jury"
	StatusJuryDecision       RequestStatus = "jury_decision"
)

// PaymentType tags a payment with its stage in the schedule.
type PaymentType string

const (
	PaymentTypeAdvance PaymentType = "advance"
	PaymentTypeBalance PaymentType = "balance"
	PaymentTypeStage1  PaymentType = "stage_1"
	PaymentTypeStage2  PaymentType = "stage_2"
	PaymentTypeStage3  PaymentType = "stage_3"
)

// Price holds amounts in CFA francs for a request category.
type Price struct {
	Total   int64 `json:"total"`
	Advance int64 `json:"advance"`
}

// DomainConfig parametrises the shared request/status/payment workflow for one
// domain: table names, reference prefix, status progression, payment schedule
// and the static price table.
type DomainConfig struct {
	Code            DomainCode
	Label           string
	ReferencePrefix string

	RequestTable string
	HistoryTable string
	PaymentTable string

	// Progression is the happy path, ordered from initial to completed.
	// rejected and cancelled branch off from any non-terminal state.
	Progression []RequestStatus

	PaymentTypes []PaymentType

	// Prices is keyed by category, or category/subcategory when the domain
	// prices on two axes (academic level + document type).
	Prices map[string]Price

	// DetailFields are the required keys of the details payload.
	DetailFields []string
}

// InitialStatus returns the status assigned at creation.
func (c *DomainConfig) InitialStatus() RequestStatus {
	return c.Progression[0]
}

// ValidStatus reports whether s belongs to this domain's status set.
func (c *DomainConfig) ValidStatus(s RequestStatus) bool {
	if s == StatusRejected || s == StatusCancelled {
		return true
	}
	_, ok := c.rank(s)
	return ok
}

// IsTerminal reports whether s admits no further regular transitions.
func (c *DomainConfig) IsTerminal(s RequestStatus) bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// CanTransition reports whether from→to is a regular transition: any forward
// move along the progression, or a branch to rejected/cancelled from a
// non-terminal state. Everything else requires an explicit override.
func (c *DomainConfig) CanTransition(from, to RequestStatus) bool {
	if from == to || c.IsTerminal(from) {
		return false
	}
	if to == StatusRejected || to == StatusCancelled {
		return true
	}
	fromRank, ok := c.rank(from)
	if !ok {
		return false
	}
	toRank, ok := c.rank(to)
	if !ok {
		return false
	}
	return toRank > fromRank
}

// ValidPaymentType reports whether t belongs to the domain's schedule.
func (c *DomainConfig) ValidPaymentType(t PaymentType) bool {
	for _, allowed := range c.PaymentTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// PriceFor resolves the static price for a category/subcategory pair.
func (c *DomainConfig) PriceFor(category, subcategory string) (Price, bool) {
	price, ok := c.Prices[PriceKey(category, subcategory)]
	return price, ok
}

// PriceKey builds the price-table key for a category/subcategory pair.
func PriceKey(category, subcategory string) string {
	if subcategory == "" {
		return category
	}
	return category + "/" + subcategory
}

func (c *DomainConfig) rank(s RequestStatus) (int, bool) {
	for i, status := range c.Progression {
		if status == s {
			return i, true
		}
	}
	return 0, false
}

var domainRegistry = map[DomainCode]*DomainConfig{
	DomainAcademic: {
		Code:            DomainAcademic,
		Label:           "Rédaction académique",
		ReferencePrefix: "REF",
		RequestTable:    "academic_requests",
		HistoryTable:    "academic_request_status_history",
		PaymentTable:    "academic_request_payments",
		Progression: []RequestStatus{
			StatusPending, StatusInfoReceived, StatusPlanValidated,
			StatusInWriting, StatusInReview, StatusCompleted,
		},
		PaymentTypes: []PaymentType{PaymentTypeAdvance, PaymentTypeBalance},
		Prices: map[string]Price{
			"BTS/RAPPORT_BTS_AVEC_STAGE":   {Total: 80000, Advance: 40000},
			"BTS/RAPPORT_BTS_SANS_STAGE":   {Total: 75000, Advance: 37500},
			"LICENCE/MEMOIRE_LICENCE":      {Total: 120000, Advance: 60000},
			"MASTER/MEMOIRE_MASTER":        {Total: 180000, Advance: 90000},
			"MASTER/THESE_PROFESSIONNELLE": {Total: 220000, Advance: 110000},
			"DOCTORAT/THESE_DOCTORAT":      {Total: 350000, Advance: 175000},
		},
		DetailFields: []string{"institution", "field_of_study"},
	},
	DomainTravel: {
		Code:            DomainTravel,
		Label:           "Assistance voyage & visa",
		ReferencePrefix: "TRV",
		RequestTable:    "travel_requests",
		HistoryTable:    "travel_request_status_history",
		PaymentTable:    "travel_request_payments",
		Progression: []RequestStatus{
			StatusPending, StatusDocsReceived, StatusApplicationSubmitted,
			StatusAppointmentScheduled, StatusDecisionReceived, StatusCompleted,
		},
		PaymentTypes: []PaymentType{PaymentTypeStage1, PaymentTypeStage2, PaymentTypeStage3},
		Prices: map[string]Price{
			"VISA_ETUDES":       {Total: 150000, Advance: 75000},
			"VISA_TOURISME":     {Total: 100000, Advance: 50000},
			"VISA_TRAVAIL":      {Total: 200000, Advance: 100000},
			"ASSISTANCE_BILLET": {Total: 50000, Advance: 25000},
		},
		DetailFields: []string{"nationality", "destination"},
	},
	DomainVAPVAE: {
		Code:            DomainVAPVAE,
		Label:           "Certification VAP/VAE",
		ReferencePrefix: "VAP",
		RequestTable:    "vap_requests",
		HistoryTable:    "vap_request_status_history",
		PaymentTable:    "vap_request_payments",
		Progression: []RequestStatus{
			StatusPending, StatusEligibilityReview, StatusDossierPreparation,
			StatusSubmittedToJury, StatusJuryDecision, StatusCompleted,
		},
		PaymentTypes: []PaymentType{PaymentTypeAdvance, PaymentTypeBalance},
		Prices: map[string]Price{
			"VAP":           {Total: 250000, Advance: 125000},
			"VAE_PARTIELLE": {Total: 300000, Advance: 150000},
			"VAE_TOTALE":    {Total: 400000, Advance: 200000},
		},
		DetailFields: []string{"profession", "years_experience"},
	},
}

// DomainByCode resolves a domain configuration from its URL code.
func DomainByCode(code string) (*DomainConfig, bool) {
	cfg, ok := domainRegistry[DomainCode(code)]
	return cfg, ok
}

// Domains returns every registered domain configuration.
func Domains() []*DomainConfig {
	return []*DomainConfig{
		domainRegistry[DomainAcademic],
		domainRegistry[DomainTravel],
		domainRegistry[DomainVAPVAE],
	}
}
