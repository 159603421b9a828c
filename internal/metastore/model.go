// Package metastore is the Brain's relational metadata store: users,
// tenants, and controller credentials. It is a credential and routing
// source only — read-only from the Brain's perspective. Job/execution state
// lives entirely in internal/store's Redis-backed State Store; metastore
// never sees a JobV2.
//
// Grounded on original_source's api/models/{user.py,tenant.py,controller.py}
// for the field list and the R1/SmartZone credential split, expressed with
// the teacher's GORM model conventions from
// internal/domain/jobs/job_run.go (snake_case columns, *time.Time optionals,
// soft delete via gorm.DeletedAt).
package metastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ControllerFamily mirrors controller.Family()'s two known adapters.
type ControllerFamily string

const (
	FamilyR1 ControllerFamily = "r1"
	FamilySZ ControllerFamily = "sz"
)

// Controller is one credential set for a remote WLAN controller, scoped to
// the user who registered it. Matches original_source's unified Controller
// model (RuckusOne and SmartZone fields side by side, nullable depending on
// Family) rather than splitting into two tables: the Brain only ever reads
// one row per job and the two families share enough columns (name, user,
// timestamps) that a single table keeps lookups a single query.
type Controller struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string    `gorm:"not null" json:"name"`

	Family ControllerFamily `gorm:"column:family;not null;index" json:"family"`

	// R1-only fields.
	R1TenantID             string `gorm:"column:r1_tenant_id" json:"r1_tenant_id,omitempty"`
	R1Region               string `gorm:"column:r1_region" json:"r1_region,omitempty"`
	EncryptedR1ClientID    []byte `gorm:"column:encrypted_r1_client_id" json:"-"`
	EncryptedR1SharedToken []byte `gorm:"column:encrypted_r1_shared_token" json:"-"`

	// SmartZone-only fields.
	SZHost                 string `gorm:"column:sz_host" json:"sz_host,omitempty"`
	SZPort                 int    `gorm:"column:sz_port" json:"sz_port,omitempty"`
	SZUseHTTPS             bool   `gorm:"column:sz_use_https" json:"sz_use_https,omitempty"`
	EncryptedSZUsername    []byte `gorm:"column:encrypted_sz_username" json:"-"`
	EncryptedSZPassword    []byte `gorm:"column:encrypted_sz_password" json:"-"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Controller) TableName() string { return "controllers" }

// Tenant is a named grouping a user applies to a controller's venues, used
// only for display and scoping in list endpoints — distinct from R1's own
// "tenant" terminology (Controller.R1TenantID), matching original_source's
// naming note on this exact ambiguity.
type Tenant struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ControllerID uuid.UUID `gorm:"type:uuid;not null;index" json:"controller_id"`
	Name         string    `gorm:"not null" json:"name"`
	ExternalID   string    `gorm:"column:external_id" json:"external_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }
