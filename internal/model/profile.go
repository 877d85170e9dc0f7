package model

// Address is the postal address block of a normalized profile.
type Address struct {
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// BasePay describes the profile's base compensation.
type BasePay struct {
	Amount   string `json:"amount"`
	Period   string `json:"period"`
	Currency string `json:"currency"`
}

// PlatformIDs carries the identifiers a platform assigns to the person.
type PlatformIDs struct {
	EmployeeID     string `json:"employee_id"`
	PositionID     string `json:"position_id"`
	PlatformUserID string `json:"platform_user_id"`
}

// Profile is the fixed, normalized output schema of a scan. All fields are
// optional and default to the empty string; date-like fields are either a
// valid ISO-8601 string or empty. A Profile is built once per successful
// scrape and never mutated afterwards.
type Profile struct {
	ID      string  `json:"id"`
	Account string  `json:"account"`
	Address Address `json:"address"`

	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name"`
	BirthDate   string `json:"birth_date"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	PictureURL  string `json:"picture_url"`

	EmploymentStatus  string `json:"employment_status"`
	EmploymentType    string `json:"employment_type"`
	JobTitle          string `json:"job_title"`
	SSN               string `json:"ssn"`
	MaritalStatus     string `json:"marital_status"`
	Gender            string `json:"gender"`
	OriginalHireDate  string `json:"original_hire_date"`
	HireDate          string `json:"hire_date"`
	TerminationDate   string `json:"termination_date"`
	TerminationReason string `json:"termination_reason"`
	Employer          string `json:"employer"`

	BasePay     BasePay     `json:"base_pay"`
	PayCycle    string      `json:"pay_cycle"`
	PlatformIDs PlatformIDs `json:"platform_ids"`

	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}
