// Package catalog loads the owners and rooms inventory from a TOML file and
// seeds it into the store.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

// Catalog is the decoded file.
type Catalog struct {
	Owners []OwnerEntry `toml:"owners"`
	Rooms  []RoomEntry  `toml:"rooms"`
}

// OwnerEntry declares a centre or a department.
type OwnerEntry struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Kind   string `toml:"kind"`
	Parent string `toml:"parent"`
}

// RoomEntry declares a room owned by an owner id.
type RoomEntry struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Owner     string `toml:"owner"`
	Capacity  int    `toml:"capacity"`
	Computers int    `toml:"computers"`
}

// InvalidCatalogError lists every problem found in a catalog.
type InvalidCatalogError struct {
	Problems []string
}

func (e *InvalidCatalogError) Error() string {
	return "catalog: invalid: " + strings.Join(e.Problems, "; ")
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	var c Catalog
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return finish(&c, md)
}

// Parse decodes and validates catalog text.
func Parse(data string) (*Catalog, error) {
	var c Catalog
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return finish(&c, md)
}

func finish(c *Catalog, md toml.MetaData) (*Catalog, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, &InvalidCatalogError{Problems: []string{"unknown keys: " + strings.Join(keys, ", ")}}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ids are unique, departments hang from an existing centre,
// rooms reference an existing owner and counts are not negative.
func (c *Catalog) Validate() error {
	var problems []string
	owners := make(map[string]OwnerEntry, len(c.Owners))
	names := make(map[string]string, len(c.Owners))

	for _, o := range c.Owners {
		switch {
		case strings.TrimSpace(o.ID) == "":
			problems = append(problems, "owner without id")
			continue
		case strings.TrimSpace(o.Name) == "":
			problems = append(problems, fmt.Sprintf("owner %s: name is required", o.ID))
		case !scheduler.OwnerKind(o.Kind).Valid():
			problems = append(problems, fmt.Sprintf("owner %s: unknown kind %q", o.ID, o.Kind))
		}
		if _, dup := owners[o.ID]; dup {
			problems = append(problems, fmt.Sprintf("owner %s: duplicate id", o.ID))
		}
		lower := strings.ToLower(strings.TrimSpace(o.Name))
		if other, dup := names[lower]; dup && lower != "" {
			problems = append(problems, fmt.Sprintf("owner %s: name already used by %s", o.ID, other))
		}
		owners[o.ID] = o
		names[lower] = o.ID
	}

	for _, o := range c.Owners {
		if o.Parent == "" {
			continue
		}
		if scheduler.OwnerKind(o.Kind) == scheduler.OwnerKindCentre {
			problems = append(problems, fmt.Sprintf("owner %s: a centre cannot have a parent", o.ID))
			continue
		}
		parent, ok := owners[o.Parent]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("owner %s: unknown parent %s", o.ID, o.Parent))
		case scheduler.OwnerKind(parent.Kind) != scheduler.OwnerKindCentre:
			problems = append(problems, fmt.Sprintf("owner %s: parent %s is not a centre", o.ID, o.Parent))
		}
	}

	rooms := make(map[string]struct{}, len(c.Rooms))
	for _, r := range c.Rooms {
		if strings.TrimSpace(r.ID) == "" {
			problems = append(problems, "room without id")
			continue
		}
		if _, dup := rooms[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("room %s: duplicate id", r.ID))
		}
		rooms[r.ID] = struct{}{}
		if strings.TrimSpace(r.Name) == "" {
			problems = append(problems, fmt.Sprintf("room %s: name is required", r.ID))
		}
		if _, ok := owners[r.Owner]; !ok {
			problems = append(problems, fmt.Sprintf("room %s: unknown owner %s", r.ID, r.Owner))
		}
		if r.Capacity < 0 {
			problems = append(problems, fmt.Sprintf("room %s: capacity must not be negative", r.ID))
		}
		if r.Computers < 0 {
			problems = append(problems, fmt.Sprintf("room %s: computers must not be negative", r.ID))
		}
	}

	if len(problems) > 0 {
		return &InvalidCatalogError{Problems: problems}
	}
	return nil
}

// OwnerList returns the owners with centres first so parents are written
// before their departments.
func (c *Catalog) OwnerList() []scheduler.Owner {
	out := make([]scheduler.Owner, 0, len(c.Owners))
	for _, o := range c.Owners {
		name := strings.TrimSpace(o.Name)
		if scheduler.OwnerKind(o.Kind) == scheduler.OwnerKindCentre {
			out = append(out, scheduler.NewCentre(o.ID, name))
		} else {
			out = append(out, scheduler.NewDepartment(o.ID, name, o.Parent))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsCentre() && !out[j].IsCentre()
	})
	return out
}

// RoomList returns the rooms in file order.
func (c *Catalog) RoomList() []scheduler.Room {
	out := make([]scheduler.Room, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		out = append(out, scheduler.Room{
			ID:        r.ID,
			Name:      strings.TrimSpace(r.Name),
			OwnerID:   r.Owner,
			Capacity:  r.Capacity,
			Computers: r.Computers,
		})
	}
	return out
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Owners int
	Rooms  int
}

// Seed upserts the catalog in one transaction. Running it twice leaves the
// store unchanged.
func Seed(ctx context.Context, uow persistence.UnitOfWork, c *Catalog) (SeedResult, error) {
	var result SeedResult
	err := uow.Atomically(ctx, func(tx persistence.Tx) error {
		writer := tx.Catalog()
		for _, owner := range c.OwnerList() {
			if err := writer.UpsertOwner(ctx, owner); err != nil {
				return err
			}
			result.Owners++
		}
		for _, room := range c.RoomList() {
			if err := writer.UpsertRoom(ctx, room); err != nil {
				return err
			}
			result.Rooms++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed catalog: %w", err)
	}
	return result, nil
}
