package scheduler

import "strings"

// OwnerKind tags an owner as a root centre or a department within a centre.
type OwnerKind string

const (
	// OwnerKindCentre marks a root owner without a parent.
	OwnerKindCentre OwnerKind = "centre"
	// OwnerKindDepartment marks an owner that may belong to a centre.
	OwnerKindDepartment OwnerKind = "department"
)

// Valid reports whether k is a known kind.
func (k OwnerKind) Valid() bool {
	return k == OwnerKindCentre || k == OwnerKindDepartment
}

// Owner is a centre or department that owns rooms and books reservations.
type Owner struct {
	ID       string
	Name     string
	Kind     OwnerKind
	ParentID string
}

// NewCentre returns a root owner.
func NewCentre(id, name string) Owner {
	return Owner{ID: id, Name: name, Kind: OwnerKindCentre}
}

// NewDepartment returns an owner attached to the centre parentID. parentID may be empty.
func NewDepartment(id, name, parentID string) Owner {
	return Owner{ID: id, Name: name, Kind: OwnerKindDepartment, ParentID: parentID}
}

// IsCentre reports whether o is a root owner.
func (o Owner) IsCentre() bool { return o.Kind == OwnerKindCentre }

// NameMatches reports whether name equals the owner name ignoring case and surrounding space.
func (o Owner) NameMatches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(o.Name), strings.TrimSpace(name))
}

// Room is a bookable lab. Its attributes are static.
type Room struct {
	ID        string
	Name      string
	OwnerID   string
	OwnerName string
	Capacity  int
	Computers int
}

// Reservation books a room for a window on behalf of an owner.
type Reservation struct {
	ID      string
	RoomID  string
	OwnerID string
	Window  TimeWindow
	Subject string
}
