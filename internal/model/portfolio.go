package model

import "time"

// Portfolio is a unit of work inside a tenant that users inspect hour by
// hour.  Portfolios are owned by the catalogue service; this service
// only reads them and flips the all-sites-checked flag.
//
// Fields:
//
//	ID              – primary key identifier.
//	TenantID        – owning tenant.
//	Name            – display name.
//	AllSitesChecked – "Yes" once every site was checked, otherwise "No".
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Portfolio struct {
	ID              uint64    // portfolios.id
	TenantID        uint64    // portfolios.tenant_id
	Name            string    // portfolios.name
	AllSitesChecked string    // portfolios.all_sites_checked
	CreatedAt       time.Time // portfolios.created_at
	UpdatedAt       time.Time // portfolios.updated_at
}

// Issue records a finding logged against a portfolio for an hour slot.
type Issue struct {
	ID          uint64    `json:"id"`           // issues.id
	TenantID    uint64    `json:"tenant_id"`    // issues.tenant_id
	PortfolioID uint64    `json:"portfolio_id"` // issues.portfolio_id
	Hour        int       `json:"hour"`         // issues.hour
	Author      string    `json:"author"`       // issues.author
	Description string    `json:"description"`  // issues.description
	CreatedAt   time.Time `json:"created_at"`   // issues.created_at
}
