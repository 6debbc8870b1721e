package partner

// Supplier regions
const (
	RegionDomestic      = "domestic"
	RegionInternational = "international"
)

// Supplier is one vendor record
type Supplier struct {
	SupplierID    string `json:"supplier_id"`
	NameZh        string `json:"supplier_name_zh"`
	NameEn        string `json:"supplier_name_en,omitempty"`
	Address       string `json:"supplier_address,omitempty"`
	Phone         string `json:"supplier_phone,omitempty"`
	Email         string `json:"supplier_email,omitempty"`
	ContactPerson string `json:"supplier_contact_person,omitempty"`
	TaxID         string `json:"supplier_tax_id,omitempty"`
	Region        string `json:"supplier_region"`
	Remark        string `json:"supplier_remark,omitempty"`
	PaymentTerms  string `json:"payment_terms,omitempty"`
	BankAccount   string `json:"bank_account,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// SummaryItem is the dropdown-sized supplier projection
type SummaryItem struct {
	SupplierID string `json:"supplier_id"`
	NameZh     string `json:"supplier_name_zh"`
	NameEn     string `json:"supplier_name_en,omitempty"`
	Region     string `json:"supplier_region"`
	IsActive   bool   `json:"is_active"`
}

// Filters narrows the supplier list fetch
type Filters struct {
	Region   string `validate:"omitempty,oneof=domestic international"`
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// CreateInput registers a new supplier
type CreateInput struct {
	SupplierID    string `json:"supplier_id" validate:"required"`
	NameZh        string `json:"supplier_name_zh" validate:"required"`
	NameEn        string `json:"supplier_name_en,omitempty"`
	Address       string `json:"supplier_address,omitempty"`
	Phone         string `json:"supplier_phone,omitempty"`
	Email         string `json:"supplier_email,omitempty" validate:"omitempty,email"`
	ContactPerson string `json:"supplier_contact_person,omitempty"`
	TaxID         string `json:"supplier_tax_id,omitempty"`
	Region        string `json:"supplier_region" validate:"required,oneof=domestic international"`
	Remark        string `json:"supplier_remark,omitempty"`
	PaymentTerms  string `json:"payment_terms,omitempty"`
	BankAccount   string `json:"bank_account,omitempty"`
}

// UpdateInput patches an existing supplier. Nil pointers leave the
// server-side field untouched.
type UpdateInput struct {
	NameZh        *string `json:"supplier_name_zh,omitempty"`
	NameEn        *string `json:"supplier_name_en,omitempty"`
	Address       *string `json:"supplier_address,omitempty"`
	Phone         *string `json:"supplier_phone,omitempty"`
	Email         *string `json:"supplier_email,omitempty" validate:"omitempty,email"`
	ContactPerson *string `json:"supplier_contact_person,omitempty"`
	TaxID         *string `json:"supplier_tax_id,omitempty"`
	Region        *string `json:"supplier_region,omitempty" validate:"omitempty,oneof=domestic international"`
	Remark        *string `json:"supplier_remark,omitempty"`
	PaymentTerms  *string `json:"payment_terms,omitempty"`
	BankAccount   *string `json:"bank_account,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
}
