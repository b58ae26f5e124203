package inventory

import (
	"strings"

	"github.com/iliyamo/hotel-backoffice/internal/model"
)

// NewRoom is the create form.  The caller validates it before submission.
type NewRoom struct {
	RoomNumber  string           `json:"room_number" validate:"required,notblank,max=20"`
	Name        string           `json:"name" validate:"required,notblank,max=120"`
	Description string           `json:"description" validate:"max=2000"`
	Price       int64            `json:"price" validate:"gt=0"`
	Capacity    int              `json:"capacity" validate:"gte=1"`
	PhotoURL    string           `json:"photo_url" validate:"omitempty,url"`
	Status      model.RoomStatus `json:"status" validate:"omitempty,oneof=available occupied maintenance"`
	Amenities   []string         `json:"amenities" validate:"dive,required,max=60"`
}

// Fields converts the form to repository fields.
func (n NewRoom) Fields() model.RoomFields {
	f := model.RoomFields{
		RoomNumber:  ptr(strings.TrimSpace(n.RoomNumber)),
		Name:        ptr(strings.TrimSpace(n.Name)),
		Description: ptr(n.Description),
		Price:       ptr(n.Price),
		Capacity:    ptr(n.Capacity),
		PhotoURL:    ptr(strings.TrimSpace(n.PhotoURL)),
		Amenities:   trimAll(n.Amenities),
	}
	if n.Status != "" {
		f.Status = ptr(n.Status)
	}
	return f
}

// RoomPatch is the partial update form; absent fields stay unchanged.
type RoomPatch struct {
	RoomNumber  *string           `json:"room_number" validate:"omitnil,notblank,max=20"`
	Name        *string           `json:"name" validate:"omitnil,notblank,max=120"`
	Description *string           `json:"description" validate:"omitnil,max=2000"`
	Price       *int64            `json:"price" validate:"omitnil,gt=0"`
	Capacity    *int              `json:"capacity" validate:"omitnil,gte=1"`
	PhotoURL    *string           `json:"photo_url" validate:"omitnil,omitempty,url"`
	Status      *model.RoomStatus `json:"status" validate:"omitnil,oneof=available occupied maintenance"`
	Amenities   []string          `json:"amenities" validate:"omitempty,dive,required,max=60"`
}

func (p RoomPatch) Fields() model.RoomFields {
	f := model.RoomFields{
		Description: p.Description,
		Price:       p.Price,
		Capacity:    p.Capacity,
		Status:      p.Status,
		Amenities:   trimAll(p.Amenities),
	}
	if p.RoomNumber != nil {
		f.RoomNumber = ptr(strings.TrimSpace(*p.RoomNumber))
	}
	if p.Name != nil {
		f.Name = ptr(strings.TrimSpace(*p.Name))
	}
	if p.PhotoURL != nil {
		f.PhotoURL = ptr(strings.TrimSpace(*p.PhotoURL))
	}
	return f
}

func ptr[T any](v T) *T { return &v }

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
