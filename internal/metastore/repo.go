package metastore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wifientist/rtools2-sub002/internal/controller"
	"github.com/wifientist/rtools2-sub002/internal/controller/r1"
	"github.com/wifientist/rtools2-sub002/internal/controller/sz"
)

// Repo is the Brain's read path into the metadata store: controller
// credentials and tenant routing. Plain context.Context + *gorm.DB
// parameters, not a ported transaction-context wrapper — the Brain never
// writes through Repo inside a larger unit of work the way the teacher's
// job-run repos do, so there is nothing for a wrapper to thread. Matches the
// convention already set by internal/observability.StartPostgresCollector.
type Repo struct {
	db     *gorm.DB
	cipher *Cipher
}

// New builds a Repo. cipher may be nil only if the caller never intends to
// call BuildClient (e.g. a migration tool that only touches Tenant rows).
func New(db *gorm.DB, cipher *Cipher) *Repo {
	return &Repo{db: db, cipher: cipher}
}

// GetController loads one controller row by id, scoped to the owning user.
func (r *Repo) GetController(ctx context.Context, userID, controllerID uuid.UUID) (*Controller, error) {
	var c Controller
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", controllerID, userID).
		First(&c).Error
	if err != nil {
		return nil, fmt.Errorf("metastore: get controller: %w", err)
	}
	return &c, nil
}

// GetTenant loads one tenant row by id, scoped to the owning user.
func (r *Repo) GetTenant(ctx context.Context, userID, tenantID uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", tenantID, userID).
		First(&t).Error
	if err != nil {
		return nil, fmt.Errorf("metastore: get tenant: %w", err)
	}
	return &t, nil
}

// ListControllers returns every controller row a user owns, for the
// controller-picker list endpoint.
func (r *Repo) ListControllers(ctx context.Context, userID uuid.UUID) ([]Controller, error) {
	var out []Controller
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("metastore: list controllers: %w", err)
	}
	return out, nil
}

// UpsertController inserts or updates a controller's routing fields and
// encrypts any credential fields supplied in plaintext before they ever
// reach the database.
func (r *Repo) UpsertController(ctx context.Context, c *Controller, r1ClientID, r1SharedToken, szUsername, szPassword string) error {
	if r.cipher == nil {
		return fmt.Errorf("metastore: no cipher configured, refusing to store credentials")
	}
	var err error
	switch c.Family {
	case FamilyR1:
		if r1ClientID != "" {
			if c.EncryptedR1ClientID, err = r.cipher.Seal(r1ClientID); err != nil {
				return err
			}
		}
		if r1SharedToken != "" {
			if c.EncryptedR1SharedToken, err = r.cipher.Seal(r1SharedToken); err != nil {
				return err
			}
		}
	case FamilySZ:
		if szUsername != "" {
			if c.EncryptedSZUsername, err = r.cipher.Seal(szUsername); err != nil {
				return err
			}
		}
		if szPassword != "" {
			if c.EncryptedSZPassword, err = r.cipher.Seal(szPassword); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("metastore: unknown controller family %q", c.Family)
	}
	return r.db.WithContext(ctx).Save(c).Error
}

// BuildClient decrypts controllerID's credentials and constructs the
// matching controller.Client adapter. Base connection settings (default
// base URL, poll tuning) come from each adapter's ConfigFromEnv, with the
// per-controller decrypted fields layered on top — the env defaults exist
// for local/dev runs against a single fixed controller, while a real
// multi-tenant deployment always takes this per-row path.
func (r *Repo) BuildClient(ctx context.Context, userID, controllerID uuid.UUID) (controller.Client, error) {
	c, err := r.GetController(ctx, userID, controllerID)
	if err != nil {
		return nil, err
	}
	switch c.Family {
	case FamilyR1:
		cfg := r1.ConfigFromEnv()
		if token, err := r.decrypt(c.EncryptedR1SharedToken); err != nil {
			return nil, err
		} else if token != "" {
			cfg.Token = token
		}
		return r1.New(cfg), nil
	case FamilySZ:
		cfg := sz.ConfigFromEnv()
		if c.SZHost != "" {
			scheme := "http"
			if c.SZUseHTTPS {
				scheme = "https"
			}
			if c.SZPort != 0 {
				cfg.BaseURL = fmt.Sprintf("%s://%s:%d", scheme, c.SZHost, c.SZPort)
			} else {
				cfg.BaseURL = fmt.Sprintf("%s://%s", scheme, c.SZHost)
			}
		}
		if user, err := r.decrypt(c.EncryptedSZUsername); err != nil {
			return nil, err
		} else if user != "" {
			cfg.Username = user
		}
		if pass, err := r.decrypt(c.EncryptedSZPassword); err != nil {
			return nil, err
		} else if pass != "" {
			cfg.Password = pass
		}
		return sz.New(cfg), nil
	default:
		return nil, fmt.Errorf("metastore: unknown controller family %q", c.Family)
	}
}

func (r *Repo) decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}
	if r.cipher == nil {
		return "", fmt.Errorf("metastore: no cipher configured, cannot decrypt stored credential")
	}
	return r.cipher.Open(ciphertext)
}
