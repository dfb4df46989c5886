package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

const ownerColumns = `id, name, kind, parent_id`

// OwnerRepository implements persistence.OwnerDirectory.
type OwnerRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

func newOwnerRepository(helper *QueryHelper) *OwnerRepository {
	return &OwnerRepository{helper: helper, mapper: NewErrorMapper()}
}

// ListOwners returns every owner ordered by name.
func (r *OwnerRepository) ListOwners(ctx context.Context) ([]scheduler.Owner, error) {
	return r.list(ctx, `SELECT `+ownerColumns+` FROM owners ORDER BY name_key, id`)
}

// ListCentres returns root owners ordered by name.
func (r *OwnerRepository) ListCentres(ctx context.Context) ([]scheduler.Owner, error) {
	return r.list(ctx, `SELECT `+ownerColumns+` FROM owners WHERE kind = ? ORDER BY name_key, id`,
		string(scheduler.OwnerKindCentre))
}

// SearchOwners matches a case-insensitive substring of the name.
func (r *OwnerRepository) SearchOwners(ctx context.Context, text string) ([]scheduler.Owner, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return r.ListOwners(ctx)
	}
	pattern := "%" + escapeLike(nameKey(text)) + "%"
	return r.list(ctx, `SELECT `+ownerColumns+` FROM owners WHERE name_key LIKE ? ESCAPE '!' ORDER BY name_key, id`, pattern)
}

// GetOwner returns the owner with id.
func (r *OwnerRepository) GetOwner(ctx context.Context, id string) (scheduler.Owner, error) {
	if id == "" {
		return scheduler.Owner{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE id = ?`, id)
	owner, err := scanOwner(row)
	if err != nil {
		return scheduler.Owner{}, r.mapper.MapError(err)
	}
	return owner, nil
}

// UpsertOwner inserts the owner or overwrites the stored one with the same id.
func (r *OwnerRepository) UpsertOwner(ctx context.Context, owner scheduler.Owner) error {
	if owner.ID == "" || !owner.Kind.Valid() {
		return persistence.ErrConstraintViolation
	}
	var parent sql.NullString
	if owner.ParentID != "" {
		parent = sql.NullString{String: owner.ParentID, Valid: true}
	}

	exists, err := r.exists(ctx, owner.ID)
	if err != nil {
		return err
	}
	if exists {
		_, err = r.helper.Exec(ctx, `UPDATE owners SET name = ?, name_key = ?, kind = ?, parent_id = ? WHERE id = ?`,
			owner.Name, nameKey(owner.Name), string(owner.Kind), parent, owner.ID)
	} else {
		_, err = r.helper.Exec(ctx, `INSERT INTO owners (id, name, name_key, kind, parent_id) VALUES (?, ?, ?, ?, ?)`,
			owner.ID, owner.Name, nameKey(owner.Name), string(owner.Kind), parent)
	}
	if err != nil {
		return fmt.Errorf("upsert owner %s: %w", owner.ID, r.mapper.MapError(err))
	}
	return nil
}

func (r *OwnerRepository) exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM owners WHERE id = ?`, id).Scan(&n); err != nil {
		return false, r.mapper.MapError(err)
	}
	return n > 0, nil
}

func (r *OwnerRepository) list(ctx context.Context, query string, args ...any) ([]scheduler.Owner, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	owners := []scheduler.Owner{}
	for rows.Next() {
		owner, err := scanOwner(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return owners, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOwner(s scanner) (scheduler.Owner, error) {
	var (
		owner  scheduler.Owner
		kind   string
		parent sql.NullString
	)
	if err := s.Scan(&owner.ID, &owner.Name, &kind, &parent); err != nil {
		return scheduler.Owner{}, err
	}
	owner.Kind = scheduler.OwnerKind(kind)
	if parent.Valid {
		owner.ParentID = parent.String
	}
	return owner, nil
}

// nameKey is the case-folded form owner names are matched on. SQL LOWER()
// folds ASCII only on SQLite, so the key is computed here for every dialect.
func nameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
