package models

// UnknownUserHandle is shown whenever an author or commenter cannot be
// resolved.
const UnknownUserHandle = "Unknown User"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID     string `firestore:"uid" json:"uid"`
	Handle string `firestore:"handle" json:"handle"`
	Role   string `firestore:"role,omitempty" json:"role,omitempty"`
}

// Viewer is the caller on whose behalf an operation runs. It is supplied
// explicitly by the caller and never read from ambient state.
type Viewer struct {
	UserID string
	Role   string
}

// Guest is the zero Viewer.
var Guest = Viewer{}

func (v Viewer) IsGuest() bool {
	return v.UserID == ""
}

func (v Viewer) IsAdmin() bool {
	return !v.IsGuest() && v.Role == RoleAdmin
}

// CanModify reports whether the viewer may edit or delete content written
// by authorID: the author themselves or an admin.
func (v Viewer) CanModify(authorID string) bool {
	if v.IsGuest() {
		return false
	}
	return v.UserID == authorID || v.IsAdmin()
}
